// ABOUTME: Configuration loading and parsing for shellrelay
// ABOUTME: Supports YAML and TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultHost               = "127.0.0.1"
	DefaultPort               = 4444
	DefaultFirstOutputTimeout = "2s"
	DefaultSettleTimeout      = "200ms"
	DefaultPrompt             = "relay> "
)

// Config represents the complete shellrelay configuration
type Config struct {
	Listen  ListenConfig  `yaml:"listen" toml:"listen"`
	Session SessionConfig `yaml:"session" toml:"session"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Console ConsoleConfig `yaml:"console" toml:"console"`
}

// ListenConfig holds the agent listener address
type ListenConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// SessionConfig holds the response windowing timeouts
type SessionConfig struct {
	FirstOutputTimeout time.Duration `yaml:"-" toml:"-"`
	SettleTimeout      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	FirstOutputTimeoutRaw string `yaml:"first_output_timeout" toml:"first_output_timeout"`
	SettleTimeoutRaw      string `yaml:"settle_timeout" toml:"settle_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ConsoleConfig holds operator console settings
type ConsoleConfig struct {
	Prompt  string `yaml:"prompt" toml:"prompt"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	cfg := &Config{
		Listen: ListenConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Session: SessionConfig{
			FirstOutputTimeoutRaw: DefaultFirstOutputTimeout,
			SettleTimeoutRaw:      DefaultSettleTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Console: ConsoleConfig{
			Prompt: DefaultPrompt,
		},
	}
	// The defaults are known-good durations.
	_ = cfg.ParseDurations()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.ParseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Marshal renders the config as YAML, suitable for writing a starter file.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Listen.Host == "" {
		return fmt.Errorf("listen.host is required")
	}
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d is out of range", c.Listen.Port)
	}
	if c.Session.FirstOutputTimeout <= 0 {
		return fmt.Errorf("session.first_output_timeout must be positive")
	}
	if c.Session.SettleTimeout <= 0 {
		return fmt.Errorf("session.settle_timeout must be positive")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// ParseDurations converts the raw duration strings into time.Duration values.
// Empty strings leave the current value untouched.
func (c *Config) ParseDurations() error {
	var err error

	if c.Session.FirstOutputTimeoutRaw != "" {
		c.Session.FirstOutputTimeout, err = time.ParseDuration(c.Session.FirstOutputTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing first_output_timeout %q: %w", c.Session.FirstOutputTimeoutRaw, err)
		}
	}

	if c.Session.SettleTimeoutRaw != "" {
		c.Session.SettleTimeout, err = time.ParseDuration(c.Session.SettleTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing settle_timeout %q: %w", c.Session.SettleTimeoutRaw, err)
		}
	}

	return nil
}
