// Package config loads the application configuration from a YAML file,
// falling back to defaults when no file is present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/bitcrank/chill/pkg/database"
)

// Config holds the central application configuration
type Config struct {
	// Backend API configuration
	Backend struct {
		URL     string `mapstructure:"url"`      // Base URL of the backend REST API
		AnonKey string `mapstructure:"anon_key"` // Public API key sent with every request
	} `mapstructure:"backend"`

	// Local storage configuration
	Storage struct {
		CachePath string `mapstructure:"cache_path"` // Video card cache database
		QueuePath string `mapstructure:"queue_path"` // Submission queue database
		PurgeDays int    `mapstructure:"purge_days"` // Cached cards older than this are purged
	} `mapstructure:"storage"`

	// Sync behavior
	Sync struct {
		PageSize int `mapstructure:"page_size"` // Cards fetched per backend page
	} `mapstructure:"sync"`

	// Submission behavior
	Submit struct {
		ExtractionTimeoutSeconds int `mapstructure:"extraction_timeout_seconds"` // Metadata extraction deadline
	} `mapstructure:"submit"`
}

// ExtractionTimeout returns the metadata extraction deadline as a duration.
func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Submit.ExtractionTimeoutSeconds) * time.Second
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	// If a relative path isn't found in the working directory, fall back to
	// the user config directory.
	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			userPath := database.DefaultPath(path)
			if _, err := os.Stat(userPath); err == nil {
				path = userPath
			}
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine - defaults apply
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anon_key", "")

	v.SetDefault("storage.cache_path", database.DefaultPath("cache.db"))
	v.SetDefault("storage.queue_path", database.DefaultPath("queue.db"))
	v.SetDefault("storage.purge_days", 90)

	v.SetDefault("sync.page_size", 50)

	v.SetDefault("submit.extraction_timeout_seconds", 10)
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	if path == "" {
		path = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend.url", config.Backend.URL)
	v.Set("backend.anon_key", config.Backend.AnonKey)
	v.Set("storage.cache_path", config.Storage.CachePath)
	v.Set("storage.queue_path", config.Storage.QueuePath)
	v.Set("storage.purge_days", config.Storage.PurgeDays)
	v.Set("sync.page_size", config.Sync.PageSize)
	v.Set("submit.extraction_timeout_seconds", config.Submit.ExtractionTimeoutSeconds)

	return v.WriteConfig()
}
