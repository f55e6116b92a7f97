package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	ServerPort      string
	RedisURL        string
	JWTSecret       string
	CORSOrigin      string
	PresenceBackend string
	PresenceMaxIdle time.Duration
	PurgeInterval   time.Duration
}

func LoadConfig() (*Config, error) {
	maxIdleStr := getEnv("PRESENCE_MAX_IDLE", "1h")
	maxIdle, err := time.ParseDuration(maxIdleStr)
	if err != nil {
		return nil, errors.New("invalid PRESENCE_MAX_IDLE format")
	}

	purgeStr := getEnv("PRESENCE_PURGE_INTERVAL", "5m")
	purgeInterval, err := time.ParseDuration(purgeStr)
	if err != nil {
		return nil, errors.New("invalid PRESENCE_PURGE_INTERVAL format")
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		CORSOrigin:      getEnv("CORS_ORIGIN", "*"),
		PresenceBackend: getEnv("PRESENCE_BACKEND", BackendRedis),
		PresenceMaxIdle: maxIdle,
		PurgeInterval:   purgeInterval,
	}

	// Validate required fields
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.PresenceBackend != BackendRedis && cfg.PresenceBackend != BackendMemory {
		return nil, fmt.Errorf("invalid PRESENCE_BACKEND %q (want %q or %q)", cfg.PresenceBackend, BackendRedis, BackendMemory)
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
