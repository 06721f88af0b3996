package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// S3Provider represents the S3-compatible service behind an endpoint.
type S3Provider string

const (
	ProviderAWS        S3Provider = "aws"
	ProviderMinIO      S3Provider = "minio"
	ProviderCloudflare S3Provider = "cloudflare"
	ProviderWasabi     S3Provider = "wasabi"
	ProviderCustom     S3Provider = "custom"
)

// DetectProvider guesses the provider from a destination endpoint URL so the
// client options (path style in particular) can be set without extra flags.
func DetectProvider(endpoint string) S3Provider {
	switch {
	case endpoint == "":
		return ProviderAWS
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return ProviderCloudflare
	case strings.Contains(endpoint, "wasabisys.com"):
		return ProviderWasabi
	case strings.Contains(endpoint, "localhost"), strings.Contains(endpoint, "127.0.0.1"),
		strings.Contains(endpoint, "minio"):
		return ProviderMinIO
	default:
		return ProviderCustom
	}
}

// ForcePathStyle reports whether the provider needs path-style addressing.
// MinIO and most self-hosted gateways do; AWS and the hosted clones resolve
// buckets from the host name.
func ForcePathStyle(p S3Provider) bool {
	switch p {
	case ProviderMinIO, ProviderCustom:
		return true
	default:
		return false
	}
}

// SourceAWSConfig builds the AWS config for reading the public archive
// bucket. The archive allows anonymous access, so no credential lookup
// happens at all.
func SourceAWSConfig(ctx context.Context, src SourceConfig) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(src.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to build source config: %w", err)
	}
	return cfg, nil
}

// DestinationAWSConfig resolves destination credentials in priority order:
// explicit keys from the configuration, then environment variables, then the
// SDK default chain (credentials file, IAM role).
func DestinationAWSConfig(ctx context.Context, dst DestinationConfig) (aws.Config, error) {
	region := dst.Region
	if region == "" {
		region = "us-east-1"
	}

	accessKey, secretKey := dst.AccessKey, dst.SecretKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	if accessKey != "" && secretKey != "" {
		provider := credentials.NewStaticCredentialsProvider(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN"))
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(provider),
		)
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to build destination config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load default credential chain: %w", err)
	}
	return cfg, nil
}

// CredentialsSource describes where destination credentials came from, for
// startup logging only.
func CredentialsSource(dst DestinationConfig) string {
	switch {
	case dst.AccessKey != "" && dst.SecretKey != "":
		return "configuration"
	case os.Getenv("AWS_ACCESS_KEY_ID") != "":
		return "environment variables"
	default:
		return "default chain (credentials file or IAM role)"
	}
}
