package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	LogLevel    string

	// Store configuration
	Store           string
	RedisURL        string
	RedisDB         int
	RedisMaxRetries int
	StoreTimeout    time.Duration

	// Presence configuration
	PresenceTTL time.Duration
	MaxBulkIDs  int

	// JWT configuration, empty disables auth
	JWTSecret string

	RateLimitPerMinute int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8005"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Store:           getEnv("PRESENCE_STORE", StoreRedis),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
		RedisMaxRetries: getEnvAsInt("REDIS_MAX_RETRIES", -1),
		StoreTimeout:    time.Duration(getEnvAsInt("STORE_TIMEOUT_MS", 300)) * time.Millisecond,

		PresenceTTL: time.Duration(getEnvAsInt("PRESENCE_TTL_SECONDS", 60)) * time.Second,
		MaxBulkIDs:  getEnvAsInt("MAX_BULK_IDS", 500),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 600),
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Store != StoreRedis && c.Store != StoreMemory {
		return fmt.Errorf("PRESENCE_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, c.Store)
	}
	if c.PresenceTTL <= 0 {
		return fmt.Errorf("PRESENCE_TTL_SECONDS must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT_MS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
