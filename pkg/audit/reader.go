// Package audit assembles complete authorization profiles for IAM roles:
// the role definition, every inline and attached policy document at its
// latest version, and the service-last-accessed report of the permissions
// the role has actually exercised.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/younsl/roleaudit/internal/models"
	"github.com/younsl/roleaudit/pkg/aws"
)

// ErrAnalysisJobFailed reports that the service-last-accessed analysis job
// reached its FAILED terminal state. The API attaches no detail to that
// state, so neither does this error.
var ErrAnalysisJobFailed = errors.New("service last accessed analysis job failed")

// DefaultPollInterval is the wait between polls of a running analysis job.
const DefaultPollInterval = 5 * time.Second

// RoleClient is the IAM surface the reader composes over. *aws.Client
// satisfies it; tests substitute fakes.
type RoleClient interface {
	GetRole(ctx context.Context, roleName string) (*models.RoleSummary, error)
	ListInlinePolicyNames(ctx context.Context, roleName string) ([]string, error)
	GetInlinePolicyDocument(ctx context.Context, roleName, policyName string) (string, error)
	ListAttachedPolicies(ctx context.Context, roleName string) ([]models.AttachedPolicyRef, error)
	ListPolicyVersions(ctx context.Context, policyArn string) ([]models.PolicyVersion, error)
	GetPolicyVersionDocument(ctx context.Context, policyArn, versionID string) (string, error)
	StartLastAccessedJob(ctx context.Context, arn string) (string, error)
	GetLastAccessedJobStatus(ctx context.Context, jobID string) (aws.JobStatus, error)
	ListLastAccessedDetails(ctx context.Context, jobID string) ([]models.AccessRecord, error)
}

// Reader builds role profiles through a RoleClient.
type Reader struct {
	client       RoleClient
	pollInterval time.Duration
}

// NewReader creates a Reader over an IAM client.
func NewReader(client RoleClient) *Reader {
	return &Reader{
		client:       client,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval overrides the analysis-job poll interval.
func (r *Reader) SetPollInterval(d time.Duration) {
	r.pollInterval = d
}

// DescribeRole builds the complete authorization profile of one role. Every
// step depends on identifiers produced by the one before it, so the sequence
// is strictly sequential. A failure at any step aborts the whole profile;
// callers retry or skip the role as a unit.
func (r *Reader) DescribeRole(ctx context.Context, roleName string) (*models.RoleProfile, error) {
	role, err := r.client.GetRole(ctx, roleName)
	if err != nil {
		return nil, err
	}

	names, err := r.client.ListInlinePolicyNames(ctx, roleName)
	if err != nil {
		return nil, err
	}
	inline := make([]models.InlinePolicy, 0, len(names))
	for _, name := range names {
		doc, err := r.client.GetInlinePolicyDocument(ctx, roleName, name)
		if err != nil {
			return nil, err
		}
		inline = append(inline, models.InlinePolicy{PolicyName: name, Document: doc})
	}

	refs, err := r.client.ListAttachedPolicies(ctx, roleName)
	if err != nil {
		return nil, err
	}
	attached := make([]models.AttachedPolicy, 0, len(refs))
	for _, ref := range refs {
		version, err := r.latestPolicyVersion(ctx, ref.PolicyArn)
		if err != nil {
			return nil, err
		}
		doc, err := r.client.GetPolicyVersionDocument(ctx, ref.PolicyArn, version.VersionID)
		if err != nil {
			return nil, err
		}
		attached = append(attached, models.AttachedPolicy{
			PolicyName: ref.PolicyName,
			PolicyArn:  ref.PolicyArn,
			VersionID:  version.VersionID,
			Document:   doc,
		})
	}

	records, err := r.lastAccessedDetails(ctx, role.ARN)
	if err != nil {
		return nil, err
	}

	return &models.RoleProfile{
		RoleArn:          role.ARN,
		RoleName:         role.RoleName,
		InlinePolicies:   inline,
		AttachedPolicies: attached,
		LastAccessed:     records,
	}, nil
}

// latestPolicyVersion selects the version with the maximum CreateDate. The
// sort is stable, so versions sharing a timestamp resolve by listing order.
func (r *Reader) latestPolicyVersion(ctx context.Context, policyArn string) (models.PolicyVersion, error) {
	versions, err := r.client.ListPolicyVersions(ctx, policyArn)
	if err != nil {
		return models.PolicyVersion{}, err
	}
	if len(versions) == 0 {
		return models.PolicyVersion{}, fmt.Errorf("policy %s has no versions", policyArn)
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return createDate(versions[i]).After(createDate(versions[j]))
	})
	return versions[0], nil
}

func createDate(v models.PolicyVersion) time.Time {
	if v.CreateDate == nil {
		return time.Time{}
	}
	return *v.CreateDate
}

// lastAccessedDetails submits the analysis job for arn and blocks until the
// remote side resolves it. There is no timeout: the only way out of a stuck
// job is ctx cancellation, which both the wait and the poll honor.
func (r *Reader) lastAccessedDetails(ctx context.Context, arn string) ([]models.AccessRecord, error) {
	jobID, err := r.client.StartLastAccessedJob(ctx, arn)
	if err != nil {
		return nil, err
	}

	for {
		if err := wait(ctx, r.pollInterval); err != nil {
			return nil, err
		}

		status, err := r.client.GetLastAccessedJobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status {
		case aws.JobFailed:
			return nil, ErrAnalysisJobFailed
		case aws.JobCompleted:
			return r.client.ListLastAccessedDetails(ctx, jobID)
		}
		slog.Debug("analysis job still running", "jobId", jobID, "status", status)
	}
}

// wait blocks for d or until ctx is cancelled, whichever comes first.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
