package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv        string
	Port          string
	RedisURL      string
	SessionSecret string
	LogLevel      string
	LogFormat     string

	EmailProvider string
	EmailAPIKey   string
	EmailSender   string

	PasscodeTTL       time.Duration
	VerifiedTTL       time.Duration
	AllowedOrigins    []string
	MaxConnections    int64
	MaxConnsPerIP     int
	ConnectionsPerSec float64
	ConnectionBurst   int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		RedisURL:      getEnv("REDIS_URL", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		EmailProvider: getEnv("EMAIL_PROVIDER", "log"),
		EmailAPIKey:   getEnv("EMAIL_API_KEY", ""),
		EmailSender:   getEnv("EMAIL_SENDER", ""),
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.EmailProvider == "resend" && cfg.EmailAPIKey == "" {
		return nil, fmt.Errorf("EMAIL_API_KEY is required when EMAIL_PROVIDER is resend")
	}

	var err error
	if cfg.PasscodeTTL, err = getDuration("PASSCODE_TTL", 4*time.Minute); err != nil {
		return nil, err
	}
	if cfg.VerifiedTTL, err = getDuration("VERIFIED_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	maxConns, err := getInt("MAX_CONNECTIONS", 1000)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnections = int64(maxConns)

	if cfg.MaxConnsPerIP, err = getInt("MAX_CONNECTIONS_PER_IP", 10); err != nil {
		return nil, err
	}
	if cfg.ConnectionBurst, err = getInt("CONNECTION_BURST", 10); err != nil {
		return nil, err
	}

	rate := getEnv("CONNECTIONS_PER_SECOND", "10")
	cfg.ConnectionsPerSec, err = strconv.ParseFloat(rate, 64)
	if err != nil {
		return nil, fmt.Errorf("CONNECTIONS_PER_SECOND must be a number: %w", err)
	}

	// The original deployment fronted a browser client on another host, so
	// the default stays permissive. Restrict via ALLOWED_ORIGINS in prod.
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	} else {
		cfg.AllowedOrigins = []string{"*"}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 4m): %w", key, err)
	}
	return d, nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
