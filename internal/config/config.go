// Package config provides environment configuration for the widget gateway.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Conversation API settings
	ChatAPIBaseURL string
	ChatAPITimeout time.Duration

	// Realtime channel settings. An empty URL disables push delivery and
	// every session polls.
	NATSURL string

	// Engine settings
	PollInterval   time.Duration
	WelcomeMessage string

	// Widget session housekeeping
	SessionIdleTTL time.Duration
	SweepInterval  time.Duration

	// Embed auth. An empty secret disables JWT verification.
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Conversation API
		ChatAPIBaseURL: getEnv("CHAT_API_BASE_URL", "http://127.0.0.1:8000/api/public"),
		ChatAPITimeout: getDurationEnv("CHAT_API_TIMEOUT", 15*time.Second),

		// Realtime
		NATSURL: getEnv("NATS_URL", ""),

		// Engine
		PollInterval:   getDurationEnv("CHAT_POLL_INTERVAL", 18*time.Second),
		WelcomeMessage: getEnv("CHAT_WELCOME_MESSAGE", ""),

		// Sessions
		SessionIdleTTL: getDurationEnv("SESSION_IDLE_TTL", 30*time.Minute),
		SweepInterval:  getDurationEnv("SESSION_SWEEP_INTERVAL", 5*time.Minute),

		// Embed auth
		JWTSecret: getEnv("WIDGET_JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
