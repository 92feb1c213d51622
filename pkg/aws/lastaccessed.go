package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/younsl/roleaudit/internal/models"
)

// JobStatus is the state of a service-last-accessed analysis job.
type JobStatus = types.JobStatusType

const (
	JobInProgress JobStatus = types.JobStatusTypeInProgress
	JobCompleted  JobStatus = types.JobStatusTypeCompleted
	JobFailed     JobStatus = types.JobStatusTypeFailed
)

// StartLastAccessedJob submits the service-last-accessed analysis for an
// identity ARN at action-level granularity and returns the job id to poll.
func (c *Client) StartLastAccessedJob(ctx context.Context, arn string) (string, error) {
	var out *iam.GenerateServiceLastAccessedDetailsOutput
	err := c.withRetry(ctx, "GenerateServiceLastAccessedDetails", func(ctx context.Context) error {
		var err error
		out, err = c.api.GenerateServiceLastAccessedDetails(ctx, &iam.GenerateServiceLastAccessedDetailsInput{
			Arn:         awssdk.String(arn),
			Granularity: types.AccessAdvisorUsageGranularityTypeActionLevel,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	return awssdk.ToString(out.JobId), nil
}

// GetLastAccessedJobStatus polls a submitted job once.
func (c *Client) GetLastAccessedJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	var out *iam.GetServiceLastAccessedDetailsOutput
	err := c.withRetry(ctx, "GetServiceLastAccessedDetails", func(ctx context.Context) error {
		var err error
		out, err = c.api.GetServiceLastAccessedDetails(ctx, &iam.GetServiceLastAccessedDetailsInput{
			JobId: awssdk.String(jobID),
		})
		return err
	})
	if err != nil {
		return "", err
	}

	return out.JobStatus, nil
}

// ListLastAccessedDetails returns the full record set of a completed job,
// one record per service the role's policies grant access to.
func (c *Client) ListLastAccessedDetails(ctx context.Context, jobID string) ([]models.AccessRecord, error) {
	services, err := collect(ctx, newPager(func(ctx context.Context, marker *string) ([]types.ServiceLastAccessed, *string, error) {
		var out *iam.GetServiceLastAccessedDetailsOutput
		err := c.withRetry(ctx, "GetServiceLastAccessedDetails", func(ctx context.Context) error {
			var err error
			out, err = c.api.GetServiceLastAccessedDetails(ctx, &iam.GetServiceLastAccessedDetailsInput{
				JobId:  awssdk.String(jobID),
				Marker: marker,
			})
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		return out.ServicesLastAccessed, nextMarker(out.IsTruncated, out.Marker), nil
	}))
	if err != nil {
		return nil, err
	}

	records := make([]models.AccessRecord, 0, len(services))
	for _, s := range services {
		records = append(records, accessRecord(s))
	}
	return records, nil
}

// accessRecord maps one SDK service-last-accessed entry to the report model.
func accessRecord(s types.ServiceLastAccessed) models.AccessRecord {
	record := models.AccessRecord{
		ServiceName:             awssdk.ToString(s.ServiceName),
		ServiceNamespace:        awssdk.ToString(s.ServiceNamespace),
		LastAuthenticated:       s.LastAuthenticated,
		LastAuthenticatedEntity: awssdk.ToString(s.LastAuthenticatedEntity),
		LastAuthenticatedRegion: awssdk.ToString(s.LastAuthenticatedRegion),
	}
	if s.TotalAuthenticatedEntities != nil {
		record.TotalAuthenticatedEntities = int(*s.TotalAuthenticatedEntities)
	}

	for _, a := range s.TrackedActionsLastAccessed {
		record.TrackedActions = append(record.TrackedActions, models.TrackedAction{
			ActionName:         awssdk.ToString(a.ActionName),
			LastAccessedEntity: awssdk.ToString(a.LastAccessedEntity),
			LastAccessedRegion: awssdk.ToString(a.LastAccessedRegion),
			LastAccessedTime:   a.LastAccessedTime,
		})
	}
	return record
}
