package config

import "time"

// ApplyDefaults fills in zero-valued fields with sensible defaults. Called
// after unmarshalling from file/environment so that a partially-specified
// config file still produces a complete, valid Config.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyKeyspaceDefaults(&cfg.Keyspace)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = 50
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.ShutdownDrainTimeout == 0 {
		cfg.ShutdownDrainTimeout = 500 * time.Millisecond
	}
}

func applyKeyspaceDefaults(cfg *KeyspaceConfig) {
	if cfg.ExpirationTick == 0 {
		cfg.ExpirationTick = 100 * time.Millisecond
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "127.0.0.1"
	}
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9121
	}
}

// DefaultConfig returns a Config with every field set to its default value.
// Used as the base for `resrv init`; Load produces the same values when no
// config file is found and no RESRV_* variables are set.
func DefaultConfig() *Config {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	return cfg
}
