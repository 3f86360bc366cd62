package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Verify      bool   `mapstructure:"verify"`
	Concurrency int    `mapstructure:"concurrency"`
	OnConflict  string `mapstructure:"on_conflict"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// Load initializes and loads configuration from file
func Load(cfgFile string) (*Config, error) {
	// Set defaults
	viper.SetDefault("verify", false)
	viper.SetDefault("concurrency", 0)
	viper.SetDefault("on_conflict", "overwrite")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	// Config file handling
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName("asardec")
		viper.SetConfigType("yaml")
	}

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.OnConflict {
	case "overwrite", "skip", "error":
	default:
		return fmt.Errorf("invalid on_conflict %q (want overwrite, skip, or error)", cfg.OnConflict)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (want debug, info, warn, or error)", cfg.LogLevel)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q (want text or json)", cfg.LogFormat)
	}

	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}

	return nil
}
