package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flag
// overrides are applied by the cmd layer after Load returns.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults matching DefaultConfig
	v.SetDefault("database_url", "")
	v.SetDefault("engine.workers", 1)
	v.SetDefault("engine.fail_fast", false)
	v.SetDefault("catalog.max_rule_set_size", 1000)

	// Bind environment variables with FB_ prefix
	v.SetEnvPrefix("FB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	urlFromFile := false
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		urlFromFile = v.InConfig("database_url")
	}

	cfg := &Config{
		DatabaseURL:    v.GetString("database_url"),
		Workers:        v.GetInt("engine.workers"),
		FailFast:       v.GetBool("engine.fail_fast"),
		MaxRuleSetSize: v.GetInt("catalog.max_rule_set_size"),
	}

	if err := cfg.Validate(urlFromFile); err != nil {
		return nil, err
	}

	return cfg, nil
}
