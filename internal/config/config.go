// Package config loads dsnap's configuration from defaults, an optional YAML
// file, and environment variables, in that precedence order (lowest to
// highest — environment wins), mirroring the teacher's pkg/config loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is dsnap's static configuration. Nothing here is process-wide
// mutable state reachable by the core packages (pkg/ebs, pkg/snapshot,
// etc.) — only cmd/dsnap resolves a Config into the explicit Params
// structs those packages accept.
type Config struct {
	// Region is the AWS region to operate in. Empty lets the AWS SDK's
	// own default-chain resolution decide.
	Region string `mapstructure:"region" yaml:"region"`

	// Profile is the named AWS credentials/config profile to use.
	Profile string `mapstructure:"profile" yaml:"profile"`

	// Workers is the number of concurrent block-fetch workers.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// QueueCapacity is loaded and defaulted to 2×Workers, but it is not
	// passed to pkg/snapshot.Download, whose block descriptor queue always
	// holds 2×Workers entries.
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity"`

	// RequestTimeout bounds each individual AWS API call.
	RequestTimeout string `mapstructure:"request_timeout" yaml:"request_timeout"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the log output format: text or json.
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from defaults, configPath (or the default
// location if empty), and environment variables prefixed DSNAP_, in that
// order of increasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	ApplyDefaults(cfg)

	return cfg, nil
}

// setupViper wires environment variable and config-file resolution.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DSNAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"region", "profile", "workers", "queue_capacity", "request_timeout", "logging.level", "logging.format"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the config file if present; a missing file is not
// an error, since defaults and environment variables alone are a valid
// configuration for a CLI tool.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// ApplyDefaults fills any zero-valued fields with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 30
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 2 * cfg.Workers
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = "30s"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// GetDefaultConfig returns a Config with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// getConfigDir returns $XDG_CONFIG_HOME/dsnap, falling back to
// ~/.config/dsnap.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dsnap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dsnap")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
