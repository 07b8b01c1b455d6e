package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("INTENT_ENDPOINT", "")
	t.Setenv("QNA_HOST", "")
	t.Setenv("KNOWLEDGE_MIN_SCORE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "3978" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.IntentConfigured() {
		t.Fatalf("expected intent endpoint unconfigured by default")
	}
	if cfg.QnAConfigured() {
		t.Fatalf("expected qna unconfigured by default")
	}
	if cfg.KnowledgeMinScore != 0.3 {
		t.Fatalf("expected default min score 0.3, got %v", cfg.KnowledgeMinScore)
	}
	if cfg.SchedulerTimeout != 10*time.Second {
		t.Fatalf("expected default scheduler timeout, got %s", cfg.SchedulerTimeout)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("INTENT_ENDPOINT", "https://westus.api.cognitive.microsoft.com")
	t.Setenv("INTENT_APP_ID", "app-1")
	t.Setenv("INTENT_API_KEY", "key")
	t.Setenv("INTENT_TIMEOUT", "2s")
	t.Setenv("QNA_HOST", "https://kb.azurewebsites.net/qnamaker")
	t.Setenv("QNA_KB_ID", "kb-1")
	t.Setenv("QNA_ENDPOINT_KEY", "endpoint")
	t.Setenv("QNA_TOP", "5")
	t.Setenv("KNOWLEDGE_MIN_SCORE", "0.45")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CORS_ALLOWED_METHODS", "GET,POST")
	t.Setenv("CORS_MAX_AGE", "1h")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IntentConfigured() {
		t.Fatalf("expected intent endpoint configured")
	}
	if cfg.IntentTimeout != 2*time.Second {
		t.Fatalf("expected intent timeout override, got %s", cfg.IntentTimeout)
	}
	if !cfg.QnAConfigured() || cfg.QnATop != 5 {
		t.Fatalf("expected qna override, got %+v", cfg)
	}
	if cfg.KnowledgeMinScore != 0.45 {
		t.Fatalf("expected min score override, got %v", cfg.KnowledgeMinScore)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
	if len(cfg.CORSMethods) != 2 || cfg.CORSMethods[0] != "GET" || cfg.CORSMaxAge != time.Hour {
		t.Fatalf("unexpected CORS settings methods=%v max_age=%s", cfg.CORSMethods, cfg.CORSMaxAge)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("QNA_TOP", "many")
	t.Setenv("SCHEDULER_TIMEOUT", "soon")
	t.Setenv("REDIS_TLS", "maybe")
	cfg := Load()
	if cfg.QnATop != 3 {
		t.Fatalf("expected default top, got %d", cfg.QnATop)
	}
	if cfg.SchedulerTimeout != 10*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.SchedulerTimeout)
	}
	if cfg.RedisTLS {
		t.Fatalf("expected redis tls disabled")
	}
}
