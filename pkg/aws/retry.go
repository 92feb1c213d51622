package aws

import (
	"context"
	"log/slog"
	"time"
)

// DefaultBackoff is the fixed wait between retries of a throttled call.
const DefaultBackoff = 5 * time.Second

// withRetry runs fn until it succeeds or fails with something other than
// throttling. Throttled calls are retried indefinitely on a fixed backoff;
// this tool is a best-effort batch scanner, so there is no attempt cap and
// no exponential growth. Any other failure is wrapped with the operation
// name and returned immediately. The backoff wait honors ctx cancellation.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isRateLimited(err) {
			return &OperationError{Op: op, Err: err}
		}
		slog.Debug("throttled by IAM, backing off", "operation", op, "backoff", c.backoff)
		if err := sleep(ctx, c.backoff); err != nil {
			return err
		}
	}
}

// sleep blocks for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
