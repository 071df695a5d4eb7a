package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/inventory"
	"github.com/srg/btctl/internal/toolpath"
	"gopkg.in/yaml.v3"
)

// ValidOutputFormats lists the accepted values of OutputFormat.
var ValidOutputFormats = []string{"table", "json"}

// Config holds application configuration
type Config struct {
	LogLevel              logrus.Level  `yaml:"log_level"`
	InventoryCommand      []string      `yaml:"inventory_command"`
	Buckets               []string      `yaml:"buckets"`
	ControlTool           string        `yaml:"control_tool"`
	ControlToolCandidates []string      `yaml:"control_tool_candidates"`
	SettleDelay           time.Duration `yaml:"settle_delay" default:"1s"`
	CommandTimeout        time.Duration `yaml:"command_timeout" default:"0s"`
	InquiryDuration       time.Duration `yaml:"inquiry_duration" default:"10s"`
	Locale                string        `yaml:"locale" default:"en"`
	OutputFormat          string        `yaml:"output_format" default:"table"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	cfg.LogLevel = logrus.WarnLevel
	cfg.InventoryCommand = append([]string(nil), inventory.DefaultCommand...)
	cfg.Buckets = append([]string(nil), inventory.DefaultBucketKeys...)
	cfg.ControlToolCandidates = append([]string(nil), toolpath.DefaultCandidates...)
	return cfg
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "btctl", "config.yaml")
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path is empty
// or does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	valid := false
	for _, format := range ValidOutputFormats {
		if c.OutputFormat == format {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid output format '%s': must be one of %v", c.OutputFormat, ValidOutputFormats)
	}

	if len(c.InventoryCommand) == 0 || c.InventoryCommand[0] == "" {
		return errors.New("inventory_command must not be empty")
	}
	if len(c.Buckets) == 0 {
		return errors.New("buckets must list at least one key")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"settle_delay", c.SettleDelay},
		{"command_timeout", c.CommandTimeout},
		{"inquiry_duration", c.InquiryDuration},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative, got %s", d.name, d.value)
		}
	}

	if _, err := device.ParseLocale(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	return nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
