package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younsl/roleaudit/internal/models"
	"github.com/younsl/roleaudit/pkg/aws"
)

// fakeRoleClient serves canned IAM data and counts the calls the reader makes.
// The job status queue holds the statuses successive polls observe.
type fakeRoleClient struct {
	role        *models.RoleSummary
	inlineNames []string
	inlineDocs  map[string]string
	attached    []models.AttachedPolicyRef
	versions    map[string][]models.PolicyVersion
	versionDocs map[string]string // "arn@versionId" -> document
	statuses    []aws.JobStatus
	records     []models.AccessRecord

	failOp string // operation name that returns an error

	jobStarts          int
	polls              int
	recordFetches      int
	versionDocRequests []string
}

func (f *fakeRoleClient) fail(op string) error {
	if f.failOp == op {
		return fmt.Errorf("%s: boom", op)
	}
	return nil
}

func (f *fakeRoleClient) GetRole(ctx context.Context, roleName string) (*models.RoleSummary, error) {
	if err := f.fail("GetRole"); err != nil {
		return nil, err
	}
	return f.role, nil
}

func (f *fakeRoleClient) ListInlinePolicyNames(ctx context.Context, roleName string) ([]string, error) {
	if err := f.fail("ListInlinePolicyNames"); err != nil {
		return nil, err
	}
	return f.inlineNames, nil
}

func (f *fakeRoleClient) GetInlinePolicyDocument(ctx context.Context, roleName, policyName string) (string, error) {
	if err := f.fail("GetInlinePolicyDocument"); err != nil {
		return "", err
	}
	return f.inlineDocs[policyName], nil
}

func (f *fakeRoleClient) ListAttachedPolicies(ctx context.Context, roleName string) ([]models.AttachedPolicyRef, error) {
	if err := f.fail("ListAttachedPolicies"); err != nil {
		return nil, err
	}
	return f.attached, nil
}

func (f *fakeRoleClient) ListPolicyVersions(ctx context.Context, policyArn string) ([]models.PolicyVersion, error) {
	if err := f.fail("ListPolicyVersions"); err != nil {
		return nil, err
	}
	return f.versions[policyArn], nil
}

func (f *fakeRoleClient) GetPolicyVersionDocument(ctx context.Context, policyArn, versionID string) (string, error) {
	if err := f.fail("GetPolicyVersionDocument"); err != nil {
		return "", err
	}
	f.versionDocRequests = append(f.versionDocRequests, policyArn+"@"+versionID)
	return f.versionDocs[policyArn+"@"+versionID], nil
}

func (f *fakeRoleClient) StartLastAccessedJob(ctx context.Context, arn string) (string, error) {
	if err := f.fail("StartLastAccessedJob"); err != nil {
		return "", err
	}
	f.jobStarts++
	return "job-1", nil
}

func (f *fakeRoleClient) GetLastAccessedJobStatus(ctx context.Context, jobID string) (aws.JobStatus, error) {
	if err := f.fail("GetLastAccessedJobStatus"); err != nil {
		return "", err
	}
	f.polls++
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return status, nil
}

func (f *fakeRoleClient) ListLastAccessedDetails(ctx context.Context, jobID string) ([]models.AccessRecord, error) {
	if err := f.fail("ListLastAccessedDetails"); err != nil {
		return nil, err
	}
	f.recordFetches++
	return f.records, nil
}

func newTestReader(client RoleClient) *Reader {
	r := NewReader(client)
	r.SetPollInterval(time.Millisecond)
	return r
}

func ts(t *testing.T, hour int) *time.Time {
	t.Helper()
	v := time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC)
	return &v
}

func TestDescribeRole(t *testing.T) {
	fake := &fakeRoleClient{
		role:        &models.RoleSummary{RoleName: "Deploy", ARN: "arn:aws:iam::123456789012:role/Deploy"},
		inlineNames: nil,
		attached:    []models.AttachedPolicyRef{{PolicyName: "p1", PolicyArn: "arn:p1"}},
		versions: map[string][]models.PolicyVersion{
			"arn:p1": {
				{VersionID: "v1", CreateDate: ts(t, 1)},
				{VersionID: "v2", CreateDate: ts(t, 2)},
			},
		},
		versionDocs: map[string]string{"arn:p1@v2": `{"doc":"v2"}`},
		statuses:    []aws.JobStatus{aws.JobCompleted},
		records:     []models.AccessRecord{{ServiceName: "Amazon S3", ServiceNamespace: "s3"}},
	}

	profile, err := newTestReader(fake).DescribeRole(context.Background(), "Deploy")
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:iam::123456789012:role/Deploy", profile.RoleArn)
	assert.Equal(t, "Deploy", profile.RoleName)
	assert.Empty(t, profile.InlinePolicies)
	require.Len(t, profile.AttachedPolicies, 1)
	assert.Equal(t, "v2", profile.AttachedPolicies[0].VersionID)
	assert.Equal(t, `{"doc":"v2"}`, profile.AttachedPolicies[0].Document)
	require.Len(t, profile.LastAccessed, 1)
	assert.Equal(t, "s3", profile.LastAccessed[0].ServiceNamespace)

	assert.Equal(t, []string{"arn:p1@v2"}, fake.versionDocRequests, "only the latest version's document is fetched")
}

func TestDescribeRolePreservesInlineOrder(t *testing.T) {
	fake := &fakeRoleClient{
		role:        &models.RoleSummary{RoleName: "Deploy", ARN: "arn:deploy"},
		inlineNames: []string{"zeta", "alpha", "mid"},
		inlineDocs:  map[string]string{"zeta": "z", "alpha": "a", "mid": "m"},
		statuses:    []aws.JobStatus{aws.JobCompleted},
	}

	profile, err := newTestReader(fake).DescribeRole(context.Background(), "Deploy")
	require.NoError(t, err)

	require.Len(t, profile.InlinePolicies, 3)
	assert.Equal(t, "zeta", profile.InlinePolicies[0].PolicyName)
	assert.Equal(t, "z", profile.InlinePolicies[0].Document)
	assert.Equal(t, "alpha", profile.InlinePolicies[1].PolicyName)
	assert.Equal(t, "mid", profile.InlinePolicies[2].PolicyName)
}

func TestLatestVersionSelection(t *testing.T) {
	orders := [][]models.PolicyVersion{
		{
			{VersionID: "v1", CreateDate: ts(t, 1)},
			{VersionID: "v2", CreateDate: ts(t, 2)},
			{VersionID: "v3", CreateDate: ts(t, 3)},
		},
		{
			{VersionID: "v3", CreateDate: ts(t, 3)},
			{VersionID: "v1", CreateDate: ts(t, 1)},
			{VersionID: "v2", CreateDate: ts(t, 2)},
		},
		{
			{VersionID: "v2", CreateDate: ts(t, 2)},
			{VersionID: "v3", CreateDate: ts(t, 3)},
			{VersionID: "v1", CreateDate: ts(t, 1)},
		},
	}

	for i, versions := range orders {
		fake := &fakeRoleClient{versions: map[string][]models.PolicyVersion{"arn:p1": versions}}
		latest, err := newTestReader(fake).latestPolicyVersion(context.Background(), "arn:p1")
		require.NoError(t, err)
		assert.Equal(t, "v3", latest.VersionID, "input order %d", i)
	}
}

func TestLatestVersionTieKeepsListingOrder(t *testing.T) {
	fake := &fakeRoleClient{versions: map[string][]models.PolicyVersion{
		"arn:p1": {
			{VersionID: "v1", CreateDate: ts(t, 2)},
			{VersionID: "v2", CreateDate: ts(t, 2)},
		},
	}}

	latest, err := newTestReader(fake).latestPolicyVersion(context.Background(), "arn:p1")
	require.NoError(t, err)
	assert.Equal(t, "v1", latest.VersionID)
}

func TestLatestVersionEmptyListing(t *testing.T) {
	fake := &fakeRoleClient{versions: map[string][]models.PolicyVersion{}}
	_, err := newTestReader(fake).latestPolicyVersion(context.Background(), "arn:p1")
	require.Error(t, err)
}

func TestJobPollingUntilCompleted(t *testing.T) {
	fake := &fakeRoleClient{
		statuses: []aws.JobStatus{aws.JobInProgress, aws.JobCompleted},
		records:  []models.AccessRecord{{ServiceNamespace: "s3"}},
	}

	records, err := newTestReader(fake).lastAccessedDetails(context.Background(), "arn:deploy")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, fake.jobStarts)
	assert.Equal(t, 2, fake.polls, "one wait precedes each poll")
	assert.Equal(t, 1, fake.recordFetches)
}

func TestJobFailureIsTerminal(t *testing.T) {
	fake := &fakeRoleClient{
		statuses: []aws.JobStatus{aws.JobFailed},
	}

	_, err := newTestReader(fake).lastAccessedDetails(context.Background(), "arn:deploy")
	require.ErrorIs(t, err, ErrAnalysisJobFailed)
	assert.Equal(t, 1, fake.polls)
	assert.Equal(t, 0, fake.recordFetches, "no record fetch after a failed job")
}

func TestJobPollingHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeRoleClient{statuses: []aws.JobStatus{aws.JobInProgress}}
	r := NewReader(fake)
	r.SetPollInterval(time.Hour)

	_, err := r.lastAccessedDetails(ctx, "arn:deploy")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fake.polls, "cancellation interrupts the wait before the next poll")
}

func TestDescribeRoleAbortsOnStepFailure(t *testing.T) {
	fake := &fakeRoleClient{
		role:        &models.RoleSummary{RoleName: "Deploy", ARN: "arn:deploy"},
		inlineNames: []string{"broken"},
		failOp:      "GetInlinePolicyDocument",
	}

	profile, err := newTestReader(fake).DescribeRole(context.Background(), "Deploy")
	require.Error(t, err)
	assert.Nil(t, profile, "no partial profile on failure")
	assert.Equal(t, 0, fake.jobStarts, "later steps never run after a failure")
}

func TestDescribeRoleSurfacesJobFailure(t *testing.T) {
	fake := &fakeRoleClient{
		role:     &models.RoleSummary{RoleName: "Deploy", ARN: "arn:deploy"},
		statuses: []aws.JobStatus{aws.JobFailed},
	}

	_, err := newTestReader(fake).DescribeRole(context.Background(), "Deploy")
	require.True(t, errors.Is(err, ErrAnalysisJobFailed))
}
