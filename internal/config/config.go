package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAPIURL = "http://127.0.0.1:8000/api/v1"

// Config holds application configuration
type Config struct {
	APIURL         string
	TokenStorePath string
	HTTPTimeout    time.Duration
	RateLimit      float64 // outgoing requests per second, 0 disables
	RateBurst      int
	OpenAPISpec    string // optional contract file for request validation
	Environment    string // development, staging, production
	LogLevel       string
	LogFormat      string

	// Dev API server
	DevAPIPort      string
	AllowedOrigins  string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	DatabaseURL     string // Postgres backend; empty keeps data in memory
}

// Load reads configuration from .env and the environment and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to read .env file: %v", err)
	}

	cfg := &Config{
		APIURL:         getEnv("BLOG_API_URL", DefaultAPIURL),
		TokenStorePath: getEnv("BLOG_TOKEN_STORE", defaultTokenStorePath()),
		OpenAPISpec:    getEnv("BLOG_OPENAPI_SPEC", ""),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		DevAPIPort:     getEnv("DEVAPI_PORT", "8000"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		DatabaseURL:    getEnv("DEVAPI_DATABASE_URL", ""),
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("BLOG_HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = getFloat("BLOG_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getInt("BLOG_RATE_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = getDuration("DEVAPI_ACCESS_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("DEVAPI_REFRESH_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for security and correctness
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("BLOG_API_URL must be an absolute URL (got %q)", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BLOG_API_URL must use http or https (got %q)", u.Scheme)
	}

	// Tokens travel in headers, so production requires TLS
	if c.IsProduction() && u.Scheme != "https" {
		return fmt.Errorf("BLOG_API_URL must use https in production")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("BLOG_HTTP_TIMEOUT must be positive (got %s)", c.HTTPTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("BLOG_RATE_LIMIT must not be negative (got %g)", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("BLOG_RATE_BURST must be at least 1 (got %d)", c.RateBurst)
	}

	if c.TokenStorePath == "" {
		return fmt.Errorf("BLOG_TOKEN_STORE must be set when no user config directory is available")
	}

	if c.OpenAPISpec != "" {
		if _, err := os.Stat(c.OpenAPISpec); err != nil {
			return fmt.Errorf("BLOG_OPENAPI_SPEC: %w", err)
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev" || c.Environment == ""
}

func defaultTokenStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "blog-client", "tokens.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
