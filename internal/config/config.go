// Package config provides configuration management for coursearc.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. It is loaded once at startup and
// injected into each component constructor; there are no ambient lookups.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LMS      LMSConfig      `yaml:"lms"`
	Transfer TransferConfig `yaml:"transfer"`
	Local    LocalConfig    `yaml:"local"`
	Restore  RestoreConfig  `yaml:"restore"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Listen            string `yaml:"listen"`
	PublicURL         string `yaml:"public_url"`
	RateLimitRequests int64  `yaml:"rate_limit_requests"`
	RateLimitPeriod   string `yaml:"rate_limit_period"`
}

// DatabaseConfig holds the Postgres connection configuration.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// LMSConfig holds the host application web service configuration used by the
// export/import client.
type LMSConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// TransferConfig holds the transfer endpoint configuration.
type TransferConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Passive  bool   `yaml:"passive"`
	FTPS     bool   `yaml:"ftps"`
	BasePath string `yaml:"base_path"`

	// OrganizeByCategory mirrors the course category ancestry as a directory
	// tree under BasePath.
	OrganizeByCategory bool `yaml:"organize_by_category"`
	// UseCourseName names uploaded archives after the course full name instead
	// of the export-assigned filename.
	UseCourseName bool `yaml:"use_course_name"`
}

// LocalConfig holds the local filesystem destination configuration.
type LocalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RestoreConfig holds restore placement configuration.
type RestoreConfig struct {
	// RootCategoryID is the category restored path segments are resolved
	// under. Values below 1 fall back to 1.
	RootCategoryID int64 `yaml:"root_category_id"`
}

// WorkerConfig holds job worker configuration.
type WorkerConfig struct {
	BatchLimit   int           `yaml:"batch_limit"`
	StaleAfter   time.Duration `yaml:"stale_after"`
	RunTimeout   time.Duration `yaml:"run_timeout"`
	BackupCron   string        `yaml:"backup_cron"`
	RestoreCron  string        `yaml:"restore_cron"`
	IncludeUsers bool          `yaml:"include_users"`
	Anonymize    bool          `yaml:"anonymize"`
}

// Load reads configuration from the given YAML file (optional; an empty path
// or missing file yields defaults), applies environment overrides, fills
// defaults and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Listen = getEnvStr("LISTEN_ADDR", c.Server.Listen)
	c.Server.PublicURL = getEnvStr("PUBLIC_URL", c.Server.PublicURL)
	c.Database.URL = getEnvStr("DATABASE_URL", c.Database.URL)
	c.LMS.BaseURL = getEnvStr("LMS_BASE_URL", c.LMS.BaseURL)
	c.LMS.Token = getEnvStr("LMS_TOKEN", c.LMS.Token)

	c.Transfer.Enabled = getEnvBool("TRANSFER_ENABLED", c.Transfer.Enabled)
	c.Transfer.URL = getEnvStr("TRANSFER_URL", c.Transfer.URL)
	c.Transfer.Username = getEnvStr("TRANSFER_USERNAME", c.Transfer.Username)
	c.Transfer.Password = getEnvStr("TRANSFER_PASSWORD", c.Transfer.Password)
	c.Transfer.Passive = getEnvBool("TRANSFER_PASSIVE", c.Transfer.Passive)
	c.Transfer.FTPS = getEnvBool("TRANSFER_FTPS", c.Transfer.FTPS)
	c.Transfer.BasePath = getEnvStr("TRANSFER_BASE_PATH", c.Transfer.BasePath)
	c.Transfer.OrganizeByCategory = getEnvBool("TRANSFER_ORGANIZE_BY_CATEGORY", c.Transfer.OrganizeByCategory)
	c.Transfer.UseCourseName = getEnvBool("TRANSFER_USE_COURSE_NAME", c.Transfer.UseCourseName)

	c.Local.Enabled = getEnvBool("LOCAL_ENABLED", c.Local.Enabled)
	c.Local.Path = getEnvStr("LOCAL_PATH", c.Local.Path)

	c.Restore.RootCategoryID = int64(getEnvInt("RESTORE_ROOT_CATEGORY_ID", int(c.Restore.RootCategoryID)))
	c.Worker.BatchLimit = getEnvInt("WORKER_BATCH_LIMIT", c.Worker.BatchLimit)
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.RateLimitRequests <= 0 {
		c.Server.RateLimitRequests = 100
	}
	if c.Server.RateLimitPeriod == "" {
		c.Server.RateLimitPeriod = "1m"
	}
	if c.LMS.Timeout <= 0 {
		c.LMS.Timeout = 10 * time.Minute
	}
	if c.Restore.RootCategoryID < 1 {
		c.Restore.RootCategoryID = 1
	}
	if c.Worker.BatchLimit <= 0 {
		c.Worker.BatchLimit = 30
	}
	if c.Worker.StaleAfter <= 0 {
		c.Worker.StaleAfter = 6 * time.Hour
	}
	if c.Worker.RunTimeout <= 0 {
		c.Worker.RunTimeout = time.Hour
	}
	if c.Worker.BackupCron == "" {
		c.Worker.BackupCron = "@every 10m"
	}
	if c.Worker.RestoreCron == "" {
		c.Worker.RestoreCron = "@every 10m"
	}
}

// Validate checks for configuration that cannot work at all. Per-destination
// settings are intentionally lenient: a disabled destination may be left blank.
func (c *Config) Validate() error {
	if c.Transfer.Enabled && strings.TrimSpace(c.Transfer.URL) == "" {
		return errors.New("config: transfer enabled but no endpoint URL set")
	}
	if c.Local.Enabled && len(strings.TrimSpace(c.Local.Path)) < 4 {
		return errors.New("config: local store enabled but path is empty or suspiciously short")
	}
	return nil
}

// getEnvStr reads a string from an environment variable, returning the default if unset.
func getEnvStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
