package bootstrap

import (
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/dental-assistant-bot/internal/config"
	"github.com/wolfman30/dental-assistant-bot/internal/knowledge"
	"github.com/wolfman30/dental-assistant-bot/pkg/logging"
)

// BuildKnowledge picks the hosted knowledge base when configured, the local
// FAQ file otherwise, and wraps either in a result cache. The close func
// releases the local index and is never nil.
func BuildKnowledge(cfg *appconfig.Config, logger *logging.Logger) (knowledge.Looker, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var (
		looker  knowledge.Looker
		closeFn = noop
	)
	switch {
	case cfg.QnAConfigured():
		client, err := knowledge.NewQnAClient(knowledge.QnAConfig{
			Host:            cfg.QnAHost,
			KnowledgeBaseID: cfg.QnAKnowledgeBaseID,
			EndpointKey:     cfg.QnAEndpointKey,
			Top:             cfg.QnATop,
			MinScore:        cfg.KnowledgeMinScore,
			Timeout:         cfg.KnowledgeTimeout,
		}, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: qna client: %w", err)
		}
		looker = client
		logger.Info("hosted knowledge base enabled", "host", cfg.QnAHost)
	case strings.TrimSpace(cfg.KnowledgeFile) != "":
		faqs, err := knowledge.LoadFAQFile(cfg.KnowledgeFile)
		if err != nil {
			return nil, noop, err
		}
		index, err := knowledge.NewIndex(faqs, cfg.QnATop, cfg.KnowledgeMinScore)
		if err != nil {
			return nil, noop, err
		}
		looker = index
		closeFn = index.Close
		logger.Info("local knowledge index loaded", "file", cfg.KnowledgeFile, "entries", index.Len())
	default:
		logger.Warn("no knowledge base configured; questions fall back to help text")
		return knowledge.Empty{}, noop, nil
	}

	if cfg.KnowledgeCacheSize > 0 && cfg.KnowledgeCacheTTL > 0 {
		looker = knowledge.NewCached(looker, cfg.KnowledgeCacheSize, cfg.KnowledgeCacheTTL)
	}
	return looker, closeFn, nil
}
