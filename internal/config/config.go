package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	DatabaseDSN string
	Env         string

	JWTSecret         string
	SessionTTLHours   int
	AdminTokenMinutes int

	AzureOpenAIKey      string
	AzureOpenAIEndpoint string
	AzureDeployment     string
	AzureAPIVersion     string

	CostPer1MInputTokens  float64
	CostPer1MOutputTokens float64
	MaxCostPerUser        float64
	MaxAPICallsPerMinute  int

	GalleryBatchInterval time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getenvFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func Load() Config {
	return Config{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseDSN: getenv("DATABASE_DSN", "host=localhost user=workshop password=workshop dbname=workshop port=5432 sslmode=disable TimeZone=UTC"),
		Env:         getenv("APP_ENV", "dev"),

		JWTSecret:         getenv("JWT_SECRET", "dev-secret-change-me"),
		SessionTTLHours:   getenvInt("SESSION_TTL_HOURS", 24),
		AdminTokenMinutes: getenvInt("ADMIN_TOKEN_TTL_MINUTES", 60),

		AzureOpenAIKey:      getenv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIEndpoint: getenv("AZURE_OPENAI_ENDPOINT", ""),
		AzureDeployment:     getenv("AZURE_OPENAI_DEPLOYMENT", "gpt-4.1"),
		AzureAPIVersion:     getenv("AZURE_OPENAI_API_VERSION", "2024-12-01-preview"),

		CostPer1MInputTokens:  getenvFloat("COST_PER_1M_INPUT_TOKENS", 2.0),
		CostPer1MOutputTokens: getenvFloat("COST_PER_1M_OUTPUT_TOKENS", 8.0),
		MaxCostPerUser:        getenvFloat("MAX_COST_PER_USER", 0.10),
		MaxAPICallsPerMinute:  getenvInt("MAX_API_CALLS_PER_MINUTE", 10),

		GalleryBatchInterval: time.Duration(getenvInt("GALLERY_BATCH_INTERVAL_MS", 500)) * time.Millisecond,
	}
}

// Validate checks the invariants that Load cannot default away.
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port must not be empty")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("database DSN must not be empty")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == "dev-secret-change-me" {
		return errors.New("default JWT secret not allowed outside dev")
	}
	if cfg.Env != "dev" && cfg.AzureOpenAIKey == "" {
		return errors.New("AZURE_OPENAI_API_KEY is required outside dev")
	}
	return nil
}
