// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// HTTP server timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Database
	DatabaseURL string

	// Azure AD / Microsoft Graph
	AzureClientID     string
	AzureClientSecret string
	AzureTenantID     string
	RedirectURI       string
	GraphBaseURL      string

	// Frontend origin for post-auth redirects
	FrontendURL string

	// Secret for signing the OAuth state parameter
	StateSecret string

	// Item metadata cache
	ItemCacheSize int
	ItemCacheTTL  time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:       envOr("METRICS_ADDR", ":9090"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogFormat:         envOr("LOG_FORMAT", "json"),
		ReadTimeout:       envDuration("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDuration("HTTP_WRITE_TIMEOUT", 0), // 0 = no limit; streams can run for hours
		IdleTimeout:       envDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		DatabaseURL:       envOr("DATABASE_URL", ""),
		AzureClientID:     envOr("AZURE_CLIENT_ID", ""),
		AzureClientSecret: envOr("AZURE_CLIENT_SECRET", ""),
		AzureTenantID:     envOr("AZURE_TENANT_ID", "common"),
		RedirectURI:       envOr("REDIRECT_URI", ""),
		GraphBaseURL:      envOr("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		FrontendURL:       envOr("FRONTEND_URL", ""),
		StateSecret:       envOr("STATE_SECRET", ""),
		ItemCacheSize:     envInt("ITEM_CACHE_SIZE", 1024),
		ItemCacheTTL:      envDuration("ITEM_CACHE_TTL", 30*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AzureClientID == "" {
		return nil, fmt.Errorf("AZURE_CLIENT_ID is required")
	}
	if cfg.AzureClientSecret == "" {
		return nil, fmt.Errorf("AZURE_CLIENT_SECRET is required")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("REDIRECT_URI is required")
	}
	if cfg.FrontendURL == "" {
		return nil, fmt.Errorf("FRONTEND_URL is required")
	}
	if cfg.StateSecret == "" {
		return nil, fmt.Errorf("STATE_SECRET is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
