// ABOUTME: Tests for player configuration loading
// ABOUTME: Covers defaults, YAML parsing, env overrides and validation
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Player.Volume != 100 {
		t.Errorf("expected volume 100, got %d", cfg.Player.Volume)
	}
	if cfg.Player.ClientID == "" {
		t.Error("expected a generated client id")
	}
	if !cfg.Server.Discover {
		t.Error("expected discovery enabled by default")
	}
	if cfg.Sync.BurstSize != 8 {
		t.Errorf("expected burst size 8, got %d", cfg.Sync.BurstSize)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
player:
  name: Kitchen
  client_id: kitchen-1
  volume: 40
  static_delay_ms: -120
server:
  address: 192.168.1.10:8927
  candidates:
    - name: relay
      address: wss://relay.example/sendspin
sync:
  burst_size: 4
  period: 10s
reconnect:
  max_backoff: 5s
log:
  level: debug
  format: json
metrics:
  address: ":9100"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Player.Name != "Kitchen" || cfg.Player.ClientID != "kitchen-1" {
		t.Errorf("unexpected player %+v", cfg.Player)
	}
	if cfg.Player.StaticDelayMs != -120 {
		t.Errorf("expected static delay -120, got %d", cfg.Player.StaticDelayMs)
	}
	if cfg.Sync.Period != 10*time.Second {
		t.Errorf("expected 10s period, got %v", cfg.Sync.Period)
	}
	// Unset keys keep their defaults
	if cfg.Sync.Interval != 50*time.Millisecond {
		t.Errorf("expected default interval, got %v", cfg.Sync.Interval)
	}
	if len(cfg.Server.Candidates) != 1 || cfg.Server.Candidates[0].Name != "relay" {
		t.Errorf("unexpected candidates %+v", cfg.Server.Candidates)
	}

	s := cfg.Session()
	if s.Volume != 40 || s.MaxBackoff != 5*time.Second || s.Burst.Size != 4 {
		t.Errorf("unexpected session config %+v", s)
	}
	if len(s.Candidates) != 1 || s.Candidates[0].Address != "wss://relay.example/sendspin" {
		t.Errorf("unexpected session candidates %+v", s.Candidates)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SENDSPIN_SERVER", "10.0.0.5:8927")
	t.Setenv("SENDSPIN_NAME", "Office")
	t.Setenv("SENDSPIN_LOG_LEVEL", "warn")
	t.Setenv("SENDSPIN_METRICS_ADDR", ":9200")

	path := writeConfig(t, "player:\n  name: Kitchen\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Address != "10.0.0.5:8927" {
		t.Errorf("expected env server, got %s", cfg.Server.Address)
	}
	if cfg.Player.Name != "Office" {
		t.Errorf("expected env name, got %s", cfg.Player.Name)
	}
	if cfg.Log.Level != "warn" || cfg.Metrics.Address != ":9200" {
		t.Errorf("unexpected log/metrics %+v %+v", cfg.Log, cfg.Metrics)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"volume", func(c *Config) { c.Player.Volume = 120 }, "player.volume"},
		{"static delay", func(c *Config) { c.Player.StaticDelayMs = 6000 }, "static_delay_ms"},
		{"no server", func(c *Config) { c.Server.Discover = false }, "server.address"},
		{"candidate", func(c *Config) { c.Server.Candidates = []CandidateConfig{{Name: "x"}} }, "candidates[0]"},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative sync", func(c *Config) { c.Sync.Period = -time.Second }, "sync"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "player: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
	if _, err := Load(writeConfig(t, "player:\n  volume: 500\n")); err == nil {
		t.Error("expected validation error")
	}
}
