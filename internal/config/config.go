package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string
	MediaDir    string

	// Lifecycle tuning
	SweepInterval       time.Duration
	MaintenanceInterval time.Duration
	ReadBurnGrace       time.Duration // purge delay after reading a burn-on-read message with no explicit TTL
	SessionRetention    time.Duration // how long an empty session survives before the maintenance pass removes it

	RateLimitPerMinute int
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SQLitePath:          os.Getenv("SQLITE_PATH"),
		RedisURL:            os.Getenv("REDIS_URL"),
		MediaDir:            getEnv("MEDIA_DIR", "./data/media"),
		SweepInterval:       getDuration("SWEEP_INTERVAL", time.Hour),
		MaintenanceInterval: getDuration("MAINTENANCE_INTERVAL", 24*time.Hour),
		ReadBurnGrace:       time.Duration(getInt("READ_BURN_GRACE_SECONDS", 300)) * time.Second,
		SessionRetention:    time.Duration(getInt("SESSION_RETENTION_DAYS", 7)) * 24 * time.Hour,
		RateLimitPerMinute:  getInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	// In production, require database and redis URLs
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
