// Package config loads and validates resrv's static configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority, applied by the caller after Load)
//  2. Environment variables (RESRV_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level resrv configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Keyspace KeyspaceConfig `mapstructure:"keyspace" yaml:"keyspace"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig controls the RESP TCP listener and connection lifecycle.
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address" validate:"required"`
	Port        int    `mapstructure:"port" yaml:"port" validate:"required,gt=0,lt=65536"`

	// MaxClients bounds concurrently admitted connections. Beyond this,
	// new connections are refused with an Error frame and closed.
	MaxClients int `mapstructure:"max_clients" yaml:"max_clients" validate:"required,gt=0"`

	// IdleTimeout bounds how long a connection may wait for its next
	// request before it is closed. Applied per request, not once per
	// connection lifetime.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"required,gt=0"`

	// ShutdownDrainTimeout bounds how long graceful shutdown waits for
	// in-flight connections to finish before forcing them closed.
	ShutdownDrainTimeout time.Duration `mapstructure:"shutdown_drain_timeout" yaml:"shutdown_drain_timeout" validate:"required,gt=0"`
}

// KeyspaceConfig controls the in-memory keyspace engine.
type KeyspaceConfig struct {
	// ExpirationTick is the interval at which the reaper sweeps the
	// expiration index for stale entries.
	ExpirationTick time.Duration `mapstructure:"expiration_tick" yaml:"expiration_tick" validate:"required,gt=0"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus metrics HTTP listener.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port" validate:"omitempty,gt=0,lt=65536"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (RESRV_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks a Config against its struct-tag constraints.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// SaveConfig writes cfg to path in YAML form, creating parent directories
// as needed.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// setupViper wires environment variable binding and config file discovery.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the RESRV_ prefix, e.g. RESRV_SERVER_PORT.
	v.SetEnvPrefix("RESRV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// Metrics are on unless configured off, matching DefaultConfig.
	v.SetDefault("metrics.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// bindEnvKeys registers every config key viper should read from the
// environment. viper.AutomaticEnv alone only resolves keys already present
// from a config file or an explicit bind, so every mapstructure path needs
// an explicit BindEnv to be overridable when no config file sets it.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.bind_address", "server.port", "server.max_clients",
		"server.idle_timeout", "server.shutdown_drain_timeout",
		"keyspace.expiration_tick",
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.bind_address", "metrics.port",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// getConfigDir returns $XDG_CONFIG_HOME/resrv, falling back to
// ~/.config/resrv, or "." if no home directory can be determined.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "resrv")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "resrv")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
