package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// LoadConfig builds the AWS session config for the named shared-config
// profile. IAM is a global service but the SDK still wants a region for
// signing. The SDK's built-in retryer is disabled: throttle recovery is owned
// by this package so that every call, including each page fetch and each job
// poll, gets the same fixed-backoff policy.
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("error loading AWS config: %w", err)
	}

	return cfg, nil
}
