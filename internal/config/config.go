// Package config loads gateway configuration from the environment and the
// limiter-profile file. Everything here is read once at startup and treated
// as immutable afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pacetrack/gateway/internal/ratelimit"
)

// Config holds process-level gateway settings.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	CORSOrigins []string

	IdentityURL   string
	TrainingURL   string
	EngagementURL string
	ClassifierURL string

	// InternalToken authenticates the gateway to the engagement service.
	InternalToken string

	UpstreamTimeout time.Duration

	Redis ratelimit.RedisConfig
}

// Load reads the gateway configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnvOr("PORT", "3000"),
		LogLevel:      getEnvOr("LOG_LEVEL", "info"),
		LogFormat:     getEnvOr("LOG_FORMAT", "json"),
		IdentityURL:   os.Getenv("USER_SERVICE_URL"),
		TrainingURL:   os.Getenv("TRAINING_SERVICE_URL"),
		EngagementURL: os.Getenv("ENGAGEMENT_SERVICE_URL"),
		ClassifierURL: os.Getenv("CHATBOT_SERVICE_URL"),
		InternalToken: os.Getenv("INTERNAL_TOKEN"),
		Redis: ratelimit.RedisConfig{
			Addr:     getEnvOr("REDIS_HOST", "localhost") + ":" + getEnvOr("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
	}

	for _, origin := range strings.Split(getEnvOr("CORS_ALLOWED_ORIGINS", ""), ",") {
		if o := strings.TrimSpace(origin); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}

	timeoutSec, err := strconv.Atoi(getEnvOr("UPSTREAM_TIMEOUT_SECONDS", "10"))
	if err != nil {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS: %w", err)
	}
	cfg.UpstreamTimeout = time.Duration(timeoutSec) * time.Second

	if cfg.IdentityURL == "" {
		return nil, fmt.Errorf("USER_SERVICE_URL is required")
	}
	if cfg.TrainingURL == "" {
		return nil, fmt.Errorf("TRAINING_SERVICE_URL is required")
	}

	return cfg, nil
}

// getEnvOr returns the environment variable or a default when unset.
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
