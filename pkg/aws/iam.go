package aws

import (
	"context"
	"net/url"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/younsl/roleaudit/internal/models"
)

// IAMAPI is the slice of the IAM service surface this tool calls. Accepting
// the interface rather than *iam.Client lets tests substitute fakes.
type IAMAPI interface {
	ListRoles(ctx context.Context, params *iam.ListRolesInput, optFns ...func(*iam.Options)) (*iam.ListRolesOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	GetRolePolicy(ctx context.Context, params *iam.GetRolePolicyInput, optFns ...func(*iam.Options)) (*iam.GetRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
	ListPolicyVersions(ctx context.Context, params *iam.ListPolicyVersionsInput, optFns ...func(*iam.Options)) (*iam.ListPolicyVersionsOutput, error)
	GetPolicyVersion(ctx context.Context, params *iam.GetPolicyVersionInput, optFns ...func(*iam.Options)) (*iam.GetPolicyVersionOutput, error)
	GenerateServiceLastAccessedDetails(ctx context.Context, params *iam.GenerateServiceLastAccessedDetailsInput, optFns ...func(*iam.Options)) (*iam.GenerateServiceLastAccessedDetailsOutput, error)
	GetServiceLastAccessedDetails(ctx context.Context, params *iam.GetServiceLastAccessedDetailsInput, optFns ...func(*iam.Options)) (*iam.GetServiceLastAccessedDetailsOutput, error)
}

// Client wraps the IAM API with two behaviors every call goes through:
// fixed-backoff retry on throttling, and Marker-cursor pagination for the
// listing operations. A throttle hit mid-listing stalls only that page fetch.
type Client struct {
	api     IAMAPI
	backoff time.Duration
}

// NewClient creates a Client over an existing IAM API surface.
func NewClient(api IAMAPI) *Client {
	return &Client{
		api:     api,
		backoff: DefaultBackoff,
	}
}

// NewClientFromConfig creates a Client bound to one AWS session config.
func NewClientFromConfig(cfg awssdk.Config) *Client {
	return NewClient(iam.NewFromConfig(cfg))
}

// SetBackoff overrides the throttle backoff interval.
func (c *Client) SetBackoff(d time.Duration) {
	c.backoff = d
}

// ListRoles returns every role in the account, in listing order.
func (c *Client) ListRoles(ctx context.Context) ([]models.RoleSummary, error) {
	roles, err := collect(ctx, c.rolePager())
	if err != nil {
		return nil, err
	}

	summaries := make([]models.RoleSummary, 0, len(roles))
	for _, r := range roles {
		summaries = append(summaries, roleSummary(r))
	}
	return summaries, nil
}

// rolePager returns a single-use pager over the account's roles, one page
// summaries per pull.
func (c *Client) rolePager() *pager[types.Role] {
	return newPager(func(ctx context.Context, marker *string) ([]types.Role, *string, error) {
		var out *iam.ListRolesOutput
		err := c.withRetry(ctx, "ListRoles", func(ctx context.Context) error {
			var err error
			out, err = c.api.ListRoles(ctx, &iam.ListRolesInput{Marker: marker})
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Roles, nextMarker(out.IsTruncated, out.Marker), nil
	})
}

// GetRole returns the definition of one role, including its canonical ARN.
func (c *Client) GetRole(ctx context.Context, roleName string) (*models.RoleSummary, error) {
	var out *iam.GetRoleOutput
	err := c.withRetry(ctx, "GetRole", func(ctx context.Context) error {
		var err error
		out, err = c.api.GetRole(ctx, &iam.GetRoleInput{RoleName: awssdk.String(roleName)})
		return err
	})
	if err != nil {
		return nil, err
	}

	summary := roleSummary(*out.Role)
	return &summary, nil
}

// ListInlinePolicyNames returns the names of the policies embedded in a role.
func (c *Client) ListInlinePolicyNames(ctx context.Context, roleName string) ([]string, error) {
	return collect(ctx, newPager(func(ctx context.Context, marker *string) ([]string, *string, error) {
		var out *iam.ListRolePoliciesOutput
		err := c.withRetry(ctx, "ListRolePolicies", func(ctx context.Context) error {
			var err error
			out, err = c.api.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
				RoleName: awssdk.String(roleName),
				Marker:   marker,
			})
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		return out.PolicyNames, nextMarker(out.IsTruncated, out.Marker), nil
	}))
}

// GetInlinePolicyDocument returns the document of one inline policy.
func (c *Client) GetInlinePolicyDocument(ctx context.Context, roleName, policyName string) (string, error) {
	var out *iam.GetRolePolicyOutput
	err := c.withRetry(ctx, "GetRolePolicy", func(ctx context.Context) error {
		var err error
		out, err = c.api.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
			RoleName:   awssdk.String(roleName),
			PolicyName: awssdk.String(policyName),
		})
		return err
	})
	if err != nil {
		return "", err
	}

	return decodeDocument(out.PolicyDocument), nil
}

// ListAttachedPolicies returns the managed policies attached to a role.
func (c *Client) ListAttachedPolicies(ctx context.Context, roleName string) ([]models.AttachedPolicyRef, error) {
	attached, err := collect(ctx, newPager(func(ctx context.Context, marker *string) ([]types.AttachedPolicy, *string, error) {
		var out *iam.ListAttachedRolePoliciesOutput
		err := c.withRetry(ctx, "ListAttachedRolePolicies", func(ctx context.Context) error {
			var err error
			out, err = c.api.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
				RoleName: awssdk.String(roleName),
				Marker:   marker,
			})
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		return out.AttachedPolicies, nextMarker(out.IsTruncated, out.Marker), nil
	}))
	if err != nil {
		return nil, err
	}

	refs := make([]models.AttachedPolicyRef, 0, len(attached))
	for _, p := range attached {
		refs = append(refs, models.AttachedPolicyRef{
			PolicyName: awssdk.ToString(p.PolicyName),
			PolicyArn:  awssdk.ToString(p.PolicyArn),
		})
	}
	return refs, nil
}

// ListPolicyVersions returns every version of a managed policy.
func (c *Client) ListPolicyVersions(ctx context.Context, policyArn string) ([]models.PolicyVersion, error) {
	versions, err := collect(ctx, newPager(func(ctx context.Context, marker *string) ([]types.PolicyVersion, *string, error) {
		var out *iam.ListPolicyVersionsOutput
		err := c.withRetry(ctx, "ListPolicyVersions", func(ctx context.Context) error {
			var err error
			out, err = c.api.ListPolicyVersions(ctx, &iam.ListPolicyVersionsInput{
				PolicyArn: awssdk.String(policyArn),
				Marker:    marker,
			})
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Versions, nextMarker(out.IsTruncated, out.Marker), nil
	}))
	if err != nil {
		return nil, err
	}

	result := make([]models.PolicyVersion, 0, len(versions))
	for _, v := range versions {
		result = append(result, models.PolicyVersion{
			VersionID:  awssdk.ToString(v.VersionId),
			CreateDate: v.CreateDate,
			IsDefault:  v.IsDefaultVersion,
		})
	}
	return result, nil
}

// GetPolicyVersionDocument returns the document of one policy version.
func (c *Client) GetPolicyVersionDocument(ctx context.Context, policyArn, versionID string) (string, error) {
	var out *iam.GetPolicyVersionOutput
	err := c.withRetry(ctx, "GetPolicyVersion", func(ctx context.Context) error {
		var err error
		out, err = c.api.GetPolicyVersion(ctx, &iam.GetPolicyVersionInput{
			PolicyArn: awssdk.String(policyArn),
			VersionId: awssdk.String(versionID),
		})
		return err
	})
	if err != nil {
		return "", err
	}

	return decodeDocument(out.PolicyVersion.Document), nil
}

// roleSummary maps an SDK role to the listing model.
func roleSummary(r types.Role) models.RoleSummary {
	return models.RoleSummary{
		RoleName:    awssdk.ToString(r.RoleName),
		ARN:         awssdk.ToString(r.Arn),
		RoleID:      awssdk.ToString(r.RoleId),
		Path:        awssdk.ToString(r.Path),
		Description: awssdk.ToString(r.Description),
		CreateDate:  r.CreateDate,
	}
}

// decodeDocument URL-decodes a policy document as returned by the IAM API.
// The contents stay opaque to this tool.
func decodeDocument(doc *string) string {
	s := awssdk.ToString(doc)
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

// nextMarker returns the continuation cursor of a page, or nil on the last page.
func nextMarker(truncated bool, marker *string) *string {
	if !truncated {
		return nil
	}
	return marker
}
