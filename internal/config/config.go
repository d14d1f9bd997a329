package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Database configuration; when empty the bot runs on the in-memory
	// store (useful for local development only)
	DatabaseURL string

	// Azure Storage configuration for the raw batch archive
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// API credentials
	RedditClientID     string
	RedditClientSecret string

	// Symbols collected on the schedule
	Watchlist []string

	// Detection parameters
	LookbackDays  int
	MinMentions   int
	MinSpikeRatio float64

	// Collection cadence
	CollectionSchedule string // "hourly" or "daily"

	// Upstream admission control
	RequestsPerSecond float64
	RequestBurst      int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "mention-batches"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),

		Watchlist: getSliceEnv("WATCHLIST", []string{
			"AAPL", "TSLA", "NVDA", "GME", "AMC",
		}),

		LookbackDays:  getIntEnv("LOOKBACK_DAYS", 7),
		MinMentions:   getIntEnv("MIN_MENTIONS", 5),
		MinSpikeRatio: getFloatEnv("MIN_SPIKE_RATIO", 2.0),

		CollectionSchedule: getEnv("COLLECTION_SCHEDULE", "hourly"),

		RequestsPerSecond: getFloatEnv("REQUESTS_PER_SECOND", 1.0),
		RequestBurst:      getIntEnv("REQUEST_BURST", 5),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.LookbackDays < 1 {
		return fmt.Errorf("LOOKBACK_DAYS must be at least 1")
	}

	if c.MinSpikeRatio <= 0 {
		return fmt.Errorf("MIN_SPIKE_RATIO must be positive")
	}

	if c.CollectionSchedule != "hourly" && c.CollectionSchedule != "daily" {
		return fmt.Errorf("COLLECTION_SCHEDULE must be 'hourly' or 'daily'")
	}

	if c.RequestsPerSecond <= 0 || c.RequestBurst < 1 {
		return fmt.Errorf("REQUESTS_PER_SECOND must be positive and REQUEST_BURST at least 1")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.ToUpper(strings.TrimSpace(parts[i]))
		}
		return parts
	}
	return defaultValue
}
