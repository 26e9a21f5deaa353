package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the server's tunables. Values load from an optional YAML file
// and can be overridden per-field through PLOTTO_* environment variables.
type Config struct {
	Addr string `yaml:"addr"`

	// FrameInterval paces the demo generator's snapshots.
	FrameInterval time.Duration `yaml:"frame_interval"`

	// InactivityTimeout fails a turn when no frame arrives for this long.
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`

	// ConnIdleTimeout stops a conversation's state forwarder after its last
	// websocket client has been gone this long.
	ConnIdleTimeout time.Duration `yaml:"conn_idle_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() *Config {
	return &Config{
		Addr:              ":8088",
		FrameInterval:     150 * time.Millisecond,
		InactivityTimeout: 30 * time.Second,
		ConnIdleTimeout:   5 * time.Minute,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PLOTTO_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("PLOTTO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PLOTTO_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	for _, override := range []struct {
		env    string
		target *time.Duration
	}{
		{"PLOTTO_FRAME_INTERVAL", &c.FrameInterval},
		{"PLOTTO_INACTIVITY_TIMEOUT", &c.InactivityTimeout},
		{"PLOTTO_CONN_IDLE_TIMEOUT", &c.ConnIdleTimeout},
	} {
		v := os.Getenv(override.env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid duration in %s", override.env)
		}
		*override.target = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.FrameInterval <= 0 {
		return errors.New("frame_interval must be positive")
	}
	if c.InactivityTimeout < 0 {
		return errors.New("inactivity_timeout must not be negative")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return errors.Errorf("unknown log_format %q (want console or json)", c.LogFormat)
	}
	return nil
}
