package aws

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// OperationError is any non-throttling failure reported by the IAM API. It
// carries the name of the failing operation for diagnostics and is never
// retried locally.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Error codes IAM reports when the caller is being throttled. These are the
// only failures the client recovers from on its own.
var rateLimitCodes = map[string]bool{
	"LimitExceededException": true,
	"Throttling":             true,
	"ThrottlingException":    true,
}

// isRateLimited reports whether err is a remote throttling error.
func isRateLimited(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return rateLimitCodes[apiErr.ErrorCode()]
	}
	return false
}
