package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	LogFormat     string
	BotAppSecret  string
	BotID         string
	RateLimitRPM  int
	CORSOrigins   []string
	CORSHeaders   []string
	CORSMethods   []string
	CORSMaxAge    time.Duration
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Intent prediction endpoint (LUIS v3 compatible)
	IntentEndpoint string
	IntentAppID    string
	IntentAPIKey   string
	IntentSlot     string
	IntentTimeout  time.Duration

	// Bedrock LLM classifier, used when the prediction endpoint is absent or failing
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string

	// Knowledge base
	QnAHost            string
	QnAKnowledgeBaseID string
	QnAEndpointKey     string
	QnATop             int
	KnowledgeFile      string
	KnowledgeMinScore  float64
	KnowledgeTimeout   time.Duration
	KnowledgeCacheSize int
	KnowledgeCacheTTL  time.Duration

	// Scheduling backend
	SchedulerEndpoint string
	SchedulerTimeout  time.Duration
	OfficeTimezone    string
	OfficeOpenHour    int
	OfficeCloseHour   int
	SlotMinutes       int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when one exists; real environment
// variables always win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "3978"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		BotAppSecret:  getEnv("BOT_APP_SECRET", ""),
		BotID:         getEnv("BOT_ID", "dental-office-bot"),
		RateLimitRPM:  getEnvAsInt("RATE_LIMIT_PER_MIN", 120),
		CORSOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
		CORSHeaders:   getEnvAsList("CORS_ALLOWED_HEADERS"),
		CORSMethods:   getEnvAsList("CORS_ALLOWED_METHODS"),
		CORSMaxAge:    getEnvAsDuration("CORS_MAX_AGE", 10*time.Minute),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		IntentEndpoint: getEnv("INTENT_ENDPOINT", ""),
		IntentAppID:    getEnv("INTENT_APP_ID", ""),
		IntentAPIKey:   getEnv("INTENT_API_KEY", ""),
		IntentSlot:     getEnv("INTENT_SLOT", "production"),
		IntentTimeout:  getEnvAsDuration("INTENT_TIMEOUT", 5*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),

		QnAHost:            getEnv("QNA_HOST", ""),
		QnAKnowledgeBaseID: getEnv("QNA_KB_ID", ""),
		QnAEndpointKey:     getEnv("QNA_ENDPOINT_KEY", ""),
		QnATop:             getEnvAsInt("QNA_TOP", 3),
		KnowledgeFile:      getEnv("KNOWLEDGE_FILE", ""),
		KnowledgeMinScore:  getEnvAsFloat("KNOWLEDGE_MIN_SCORE", 0.3),
		KnowledgeTimeout:   getEnvAsDuration("KNOWLEDGE_TIMEOUT", 5*time.Second),
		KnowledgeCacheSize: getEnvAsInt("KNOWLEDGE_CACHE_SIZE", 256),
		KnowledgeCacheTTL:  getEnvAsDuration("KNOWLEDGE_CACHE_TTL", 10*time.Minute),

		SchedulerEndpoint: getEnv("SCHEDULER_ENDPOINT", ""),
		SchedulerTimeout:  getEnvAsDuration("SCHEDULER_TIMEOUT", 10*time.Second),
		OfficeTimezone:    getEnv("OFFICE_TIMEZONE", "America/New_York"),
		OfficeOpenHour:    getEnvAsInt("OFFICE_OPEN_HOUR", 8),
		OfficeCloseHour:   getEnvAsInt("OFFICE_CLOSE_HOUR", 17),
		SlotMinutes:       getEnvAsInt("SLOT_MINUTES", 30),
	}
}

// IntentConfigured reports whether the prediction endpoint has enough settings to be used.
func (c *Config) IntentConfigured() bool {
	return c.IntentEndpoint != "" && c.IntentAppID != "" && c.IntentAPIKey != ""
}

// QnAConfigured reports whether the hosted knowledge base can be queried.
func (c *Config) QnAConfigured() bool {
	return c.QnAHost != "" && c.QnAKnowledgeBaseID != "" && c.QnAEndpointKey != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
