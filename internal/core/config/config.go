// Package config provides configuration management for FieldBridge commands.
package config

import (
	"fmt"
	"net/url"
)

// Config holds settings for translation runs and catalog access.
type Config struct {
	// DatabaseURL points at the rule catalog (sqlite://path or
	// postgres://...). Empty when running purely from rule files.
	DatabaseURL string

	// Workers bounds per-record parallelism inside a single rule.
	Workers int

	// FailFast stops a run at the first failed rule instead of reporting
	// partial translation.
	FailFast bool

	// MaxRuleSetSize caps the number of rules accepted per set at catalog
	// import time.
	MaxRuleSetSize int
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL:    "",
		Workers:        1,
		FailFast:       false,
		MaxRuleSetSize: 1000,
	}
}

// Validate checks value ranges and rejects credentials embedded in the
// database URL. Passwords belong in the FB_DATABASE_URL environment
// variable, never in config files, so any URL that arrived through the
// config layer with a password is refused.
func (c *Config) Validate(urlFromFile bool) error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MaxRuleSetSize <= 0 {
		return fmt.Errorf("max_rule_set_size must be positive, got %d", c.MaxRuleSetSize)
	}

	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
		switch u.Scheme {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
		}
		if urlFromFile {
			if _, hasPassword := u.User.Password(); hasPassword {
				return fmt.Errorf("database passwords not allowed in config files (use FB_DATABASE_URL environment variable)")
			}
		}
	}

	return nil
}
