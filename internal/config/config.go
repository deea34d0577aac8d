// Package config loads the savings bank settings from an optional YAML file
// overlaid with SAVINGSBANK_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "savingsbank"

// Config holds the runtime settings.
type Config struct {
	DatabasePath string `yaml:"databasePath"     split_words:"true"`
	LogLevel     string `yaml:"logLevel"         split_words:"true"`
	// QueueCapacity is the room preallocated for pending calls. The call
	// queue is unbounded; this is not a limit.
	QueueCapacity    int    `yaml:"queueCapacity"    split_words:"true"`
	MetricsNamespace string `yaml:"metricsNamespace" split_words:"true"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		DatabasePath:     "savingsbank.db",
		LogLevel:         "info",
		QueueCapacity:    64,
		MetricsNamespace: "savingsbank",
	}
}

// Load starts from Default, applies configFile if it is non-empty, then the
// environment, and validates the result. Unknown keys in the file are errors.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := decodeYAML(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(buf []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(buf))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("invalid config: databasePath must not be empty")
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("invalid config: queueCapacity must be positive, got %d", c.QueueCapacity)
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("logLevel %q: %w", c.LogLevel, err)
	}
	return level, nil
}
