// Package awsclient loads the shared aws-sdk-go-v2 configuration used by the
// DynamoDB, SQS and SNS drivers.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Config holds the region and an optional endpoint override
type Config struct {
	Region   string
	Endpoint string
}

// Load resolves credentials through the default provider chain. When an
// endpoint is set (LocalStack, ElasticMQ) every client built from the
// returned config talks to it instead of the AWS endpoints.
func Load(ctx context.Context, config *Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	if config.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(config.Endpoint)
	}

	return awsCfg, nil
}
