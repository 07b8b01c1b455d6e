package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	appconfig "github.com/wolfman30/dental-assistant-bot/internal/config"
)

// LoadAWSConfig centralizes AWS SDK initialization so the server and console
// share the same credential and endpoint wiring. It returns nil when no
// Bedrock model is configured since nothing else talks to AWS.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (*aws.Config, error) {
	if strings.TrimSpace(cfg.BedrockModelID) == "" {
		return nil, nil
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return &awsCfg, nil
}
