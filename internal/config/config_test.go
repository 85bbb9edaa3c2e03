package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 6380
logging:
  level: debug
metrics:
  enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Port != 6380 {
		t.Errorf("expected port 6380, got %d", cfg.Server.Port)
	}
	if cfg.Server.BindAddress != "127.0.0.1" {
		t.Errorf("expected default bind_address 127.0.0.1, got %q", cfg.Server.BindAddress)
	}
	if cfg.Server.MaxClients != 50 {
		t.Errorf("expected default max_clients 50, got %d", cfg.Server.MaxClients)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Metrics.Port != 9121 {
		t.Errorf("expected default metrics port 9121, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistent := filepath.Join(tmpDir, "missing.yaml")

	cfg, err := Load(nonExistent)
	if err != nil {
		t.Fatalf("expected no error for missing config file, got: %v", err)
	}
	if cfg.Server.Port != 6379 {
		t.Errorf("expected default port 6379, got %d", cfg.Server.Port)
	}
	if cfg.Keyspace.ExpirationTick != 100*time.Millisecond {
		t.Errorf("expected default expiration_tick 100ms, got %v", cfg.Keyspace.ExpirationTick)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RESRV_SERVER_PORT", "7000")

	tmpDir := t.TempDir()
	nonExistent := filepath.Join(tmpDir, "missing.yaml")

	cfg, err := Load(nonExistent)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("expected env override to set port 7000, got %d", cfg.Server.Port)
	}
}

func TestValidate_RejectsZeroMaxClients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.MaxClients = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for max_clients=0")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 7777

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to reload saved config: %v", err)
	}
	if loaded.Server.Port != 7777 {
		t.Errorf("expected round-tripped port 7777, got %d", loaded.Server.Port)
	}
}
