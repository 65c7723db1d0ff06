package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime settings, loaded from environment variables.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL string
	DataPath string

	// ArchivePath is the SQLite file for the resolution chronicle.
	ArchivePath string

	LLMProvider     string
	AnthropicAPIKey string
	OllamaURL       string
	ModelName       string

	// PremiseIncrement is how far a premise-testing choice advances
	// premise progression per resolution.
	PremiseIncrement float64

	// EscapeFireThreshold is the random draw a hatch must beat to
	// fire. Zero makes every gated hatch fire.
	EscapeFireThreshold float64
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),
		DataPath:    getEnv("DATA_PATH", "./data"),
		ArchivePath: getEnv("ARCHIVE_PATH", "./branch-archive.db"),

		LLMProvider:     getEnv("LLM_PROVIDER", "mock"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		ModelName:       getEnv("MODEL_NAME", ""),
	}

	var err error
	cfg.PremiseIncrement, err = parseFloat("PREMISE_INCREMENT", 15.0)
	if err != nil {
		return nil, err
	}
	cfg.EscapeFireThreshold, err = parseFloat("ESCAPE_FIRE_THRESHOLD", 0.7)
	if err != nil {
		return nil, err
	}

	if cfg.PremiseIncrement <= 0 || cfg.PremiseIncrement > 100 {
		return nil, fmt.Errorf("PREMISE_INCREMENT must be in (0, 100], got %v", cfg.PremiseIncrement)
	}
	if cfg.EscapeFireThreshold < 0 || cfg.EscapeFireThreshold >= 1 {
		return nil, fmt.Errorf("ESCAPE_FIRE_THRESHOLD must be in [0, 1), got %v", cfg.EscapeFireThreshold)
	}

	return cfg, nil
}

func parseFloat(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
