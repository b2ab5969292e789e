// Package config loads client configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/immodoc/immodoc/pkg/errors"
)

// Default values used when neither the file nor the environment says
// otherwise.
const (
	DefaultBaseURL    = "http://localhost:8000"
	DefaultPropertyID = 1
)

// Config is the full client configuration.
type Config struct {
	// BaseURL is the API endpoint, stored without a trailing slash.
	BaseURL    string `yaml:"base_url"`
	PropertyID int64  `yaml:"property_id"`
	APIToken   string `yaml:"api_token"`

	// DataDir holds the session database and log files.
	DataDir string `yaml:"data_dir"`

	NetworkLogs bool `yaml:"network_logs"`

	Watch WatchConfig `yaml:"watch"`
}

// WatchConfig configures the directory watcher.
type WatchConfig struct {
	// Dir is the directory scanned for new PDFs. Empty disables watching.
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		PropertyID: DefaultPropertyID,
		DataDir:    defaultDataDir(),
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".immodoc", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".immodoc"
	}
	return filepath.Join(home, ".immodoc")
}

// Load reads the config file at path, applies environment overrides and
// validates the result. A missing file is not an error; the defaults
// apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults plus environment only
	case err != nil:
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "failed to read config file").
			WithContext("path", path)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "failed to parse config file").
				WithContext("path", path)
		}
	}

	cfg.applyEnv()
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("IMMODOC_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("IMMODOC_PROPERTY_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.PropertyID = id
		}
	}
	if v := os.Getenv("IMMODOC_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("IMMODOC_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("IMMODOC_NETWORK_LOGS"); v != "" {
		c.NetworkLogs = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("IMMODOC_WATCH_DIR"); v != "" {
		c.Watch.Dir = v
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "base_url must not be empty")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("base_url %q is not an absolute http(s) URL", c.BaseURL))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("base_url scheme %q is not supported", parsed.Scheme))
	}
	if c.PropertyID <= 0 {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "property_id must be positive")
	}
	return nil
}

// SessionDBPath is where the session store lives.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.DataDir, "session.db")
}

// LogDir is where structured logs are written.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}
