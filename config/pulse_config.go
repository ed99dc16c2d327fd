package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int
	AssessEnabled  bool

	// Telegram delivery
	TelegramBotToken string

	// Scoring weights (must sum to 1.0; a drifting sum is logged, not fatal)
	WeightContent    float64
	WeightAssessment float64
	WeightSource     float64
	WeightTimeliness float64

	// Criticality thresholds
	CriticalThreshold  int
	EmergencyThreshold int

	// Pipeline
	BatchLimit          int
	BatchIntervalSec    int
	InterMessageDelayMS int
	DispatchImmediately bool

	// Dispatch pacing
	PacingPerChatMS int
	PacingGlobalMS  int

	// Digest
	DigestEnabled bool
	DigestHourUTC int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "feedpulse"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 1024),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 30),
		AssessEnabled:  getEnvBool("ASSESS_ENABLED", true),

		// Telegram
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		// Scoring weights
		WeightContent:    getEnvFloat("WEIGHT_CONTENT", 0.25),
		WeightAssessment: getEnvFloat("WEIGHT_ASSESSMENT", 0.5),
		WeightSource:     getEnvFloat("WEIGHT_SOURCE", 0.15),
		WeightTimeliness: getEnvFloat("WEIGHT_TIMELINESS", 0.1),

		// Criticality thresholds
		CriticalThreshold:  getEnvInt("CRITICAL_THRESHOLD", 80),
		EmergencyThreshold: getEnvInt("EMERGENCY_THRESHOLD", 90),

		// Pipeline
		BatchLimit:          getEnvInt("BATCH_LIMIT", 50),
		BatchIntervalSec:    getEnvInt("BATCH_INTERVAL_SEC", 60),
		InterMessageDelayMS: getEnvInt("INTER_MESSAGE_DELAY_MS", 200),
		DispatchImmediately: getEnvBool("DISPATCH_IMMEDIATELY", true),

		// Dispatch pacing
		PacingPerChatMS: getEnvInt("PACING_PER_CHAT_MS", 1000),
		PacingGlobalMS:  getEnvInt("PACING_GLOBAL_MS", 35),

		// Digest
		DigestEnabled: getEnvBool("DIGEST_ENABLED", true),
		DigestHourUTC: getEnvInt("DIGEST_HOUR_UTC", 6),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}, nil
}

// BatchInterval returns the scheduler period between batch runs.
func (c *Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalSec) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
