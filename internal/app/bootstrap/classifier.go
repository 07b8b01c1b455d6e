package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/dental-assistant-bot/internal/config"
	"github.com/wolfman30/dental-assistant-bot/internal/intent"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// BuildClassifier assembles the intent chain: the hosted prediction endpoint
// first, then the Bedrock model, then local rules. awsCfg is only consulted
// when a Bedrock model id is configured and may be nil otherwise.
func BuildClassifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*intent.Chain, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var classifiers []intent.Classifier
	if cfg.IntentConfigured() {
		prediction, err := intent.NewPredictionClient(intent.PredictionConfig{
			Endpoint: cfg.IntentEndpoint,
			AppID:    cfg.IntentAppID,
			APIKey:   cfg.IntentAPIKey,
			Slot:     cfg.IntentSlot,
			Timeout:  cfg.IntentTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: intent prediction client: %w", err)
		}
		classifiers = append(classifiers, prediction)
		logger.Info("intent prediction endpoint enabled", "endpoint", cfg.IntentEndpoint)
	}

	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		if awsCfg == nil {
			logger.Warn("bedrock model configured without aws config; skipping")
		} else {
			client := intent.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg))
			classifiers = append(classifiers, intent.NewLLMClassifier(client, model, logger))
			logger.Info("bedrock intent classifier enabled", "model", model)
		}
	}

	classifiers = append(classifiers, intent.NewRuleClassifier())
	return intent.NewChain(logger, classifiers...), nil
}
