package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// defaultFallbackRatesURL is the published copy of the built-in rate table,
// tried when both the configured and the same-origin feeds are unusable.
const defaultFallbackRatesURL = "https://raw.githubusercontent.com/costbook/costbook/main/web/static/rates.json"

type Config struct {
	// HTTP Server
	Port string

	// Database
	DBPath string

	// Exchange rates
	RateDefaultURL  string
	RateFallbackURL string
	RateTimeout     time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:   getEnv("PORT", "8082"),
		DBPath: getEnv("SQLITE_DB_PATH", "./data/costbook.db"),

		RateDefaultURL:  getEnv("RATE_DEFAULT_URL", ""),
		RateFallbackURL: getEnv("RATE_FALLBACK_URL", defaultFallbackRatesURL),
		RateTimeout:     getEnvDuration("RATE_TIMEOUT", 5*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// The server serves its own copy of the rate table, so the default feed
	// points back at it unless overridden.
	if cfg.RateDefaultURL == "" {
		cfg.RateDefaultURL = "http://localhost:" + cfg.Port + "/rates.json"
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate database path
	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate rate feed URLs if provided
	for _, feed := range []struct {
		name  string
		value string
	}{
		{"default rate feed URL", c.RateDefaultURL},
		{"fallback rate feed URL", c.RateFallbackURL},
	} {
		if feed.value == "" {
			continue
		}
		if parsedURL, err := url.Parse(feed.value); err != nil {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': %v", feed.name, feed.value, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid %s scheme '%s': must be 'http' or 'https'", feed.name, parsedURL.Scheme))
		}
	}

	// Validate rate fetch timeout
	if c.RateTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rate timeout %v: must be at least 1 second", c.RateTimeout))
	} else if c.RateTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate timeout %v: must be at most 1 minute", c.RateTimeout))
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
