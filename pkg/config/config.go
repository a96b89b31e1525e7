package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the flock agent.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables override YAML values. The API base URL is
// required and never defaulted to a production endpoint.
type Config struct {
	// APIBaseURL is the base URL of the remote church-management API.
	APIBaseURL string `yaml:"api_base_url" env:"FLOCK_API_URL"`

	// CredentialsPath is where the persisted session (token + identity) lives.
	CredentialsPath string `yaml:"credentials_path" env:"FLOCK_CREDENTIALS" env-default:"flock-session.json"`

	// CredentialsKey, when set, encrypts the persisted session at rest.
	// Either a base64-encoded 32-byte key or a passphrase.
	CredentialsKey string `yaml:"credentials_key" env:"FLOCK_CREDENTIALS_KEY" env-default:""`

	// IdleTimeout is how long a session survives without user activity.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"FLOCK_IDLE_TIMEOUT" env-default:"30m"`

	// StatusCheckInterval is how often event statuses are re-evaluated
	// against the wall clock.
	StatusCheckInterval time.Duration `yaml:"status_check_interval" env:"FLOCK_STATUS_CHECK_INTERVAL" env-default:"30s"`

	// RefreshInterval is how often cached lists are re-fetched.
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"FLOCK_REFRESH_INTERVAL" env-default:"60s"`

	// MetricsAddr exposes Prometheus metrics when non-empty (e.g. ":9464").
	MetricsAddr string `yaml:"metrics_addr" env:"FLOCK_METRICS_ADDR" env-default:""`

	LogLevel string `yaml:"log_level" env:"FLOCK_LOG_LEVEL" env-default:"info"`

	// Version is set at load time, not from config.
	Version string `yaml:"-"`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error; the environment alone can carry a full
// configuration.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api_base_url is required (set FLOCK_API_URL)")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_base_url %q is not a valid URL", c.APIBaseURL)
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle_timeout must be positive")
	}
	if c.StatusCheckInterval <= 0 {
		return errors.New("status_check_interval must be positive")
	}
	if c.RefreshInterval <= 0 {
		return errors.New("refresh_interval must be positive")
	}
	return nil
}
