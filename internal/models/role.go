package models

import "time"

// RoleSummary is one entry of the role discovery listing.
type RoleSummary struct {
	RoleName    string     `json:"roleName"`
	ARN         string     `json:"arn"`
	RoleID      string     `json:"roleId,omitempty"`
	Path        string     `json:"path,omitempty"`
	Description string     `json:"description,omitempty"`
	CreateDate  *time.Time `json:"createDate,omitempty"`
}

// AttachedPolicyRef identifies one managed policy attached to a role.
type AttachedPolicyRef struct {
	PolicyName string `json:"policyName,omitempty"`
	PolicyArn  string `json:"policyArn"`
}

// PolicyVersion is one version of a managed policy. Exactly one version is
// latest at any time, determined by maximum CreateDate.
type PolicyVersion struct {
	VersionID  string     `json:"versionId"`
	CreateDate *time.Time `json:"createDate,omitempty"`
	IsDefault  bool       `json:"isDefault"`
}

// InlinePolicy is a policy document embedded directly in one role.
type InlinePolicy struct {
	PolicyName string `json:"policyName"`
	Document   string `json:"document"`
}

// AttachedPolicy is the latest version of a managed policy attached to a role.
type AttachedPolicy struct {
	PolicyName string `json:"policyName,omitempty"`
	PolicyArn  string `json:"policyArn"`
	VersionID  string `json:"versionId"`
	Document   string `json:"document"`
}

// TrackedAction is one action-level entry of an access record.
type TrackedAction struct {
	ActionName         string     `json:"actionName"`
	LastAccessedEntity string     `json:"lastAccessedEntity,omitempty"`
	LastAccessedRegion string     `json:"lastAccessedRegion,omitempty"`
	LastAccessedTime   *time.Time `json:"lastAccessedTime,omitempty"`
}

// AccessRecord reports a role's actual usage of one AWS service, as computed
// by the service-last-accessed analysis job.
type AccessRecord struct {
	ServiceName                string          `json:"serviceName"`
	ServiceNamespace           string          `json:"serviceNamespace"`
	LastAuthenticated          *time.Time      `json:"lastAuthenticated,omitempty"`
	LastAuthenticatedEntity    string          `json:"lastAuthenticatedEntity,omitempty"`
	LastAuthenticatedRegion    string          `json:"lastAuthenticatedRegion,omitempty"`
	TotalAuthenticatedEntities int             `json:"totalAuthenticatedEntities"`
	TrackedActions             []TrackedAction `json:"trackedActions,omitempty"`
}

// RoleProfile is the complete authorization profile of one IAM role: its
// identity, every policy document granting it permissions, and the
// last-accessed report of the permissions it has actually exercised.
// Attached policy documents are the latest version at fetch time.
type RoleProfile struct {
	RoleArn          string           `json:"roleArn"`
	RoleName         string           `json:"roleName"`
	InlinePolicies   []InlinePolicy   `json:"inlinePolicies"`
	AttachedPolicies []AttachedPolicy `json:"attachedPolicies"`
	LastAccessed     []AccessRecord   `json:"lastAccessedDetails"`
}
