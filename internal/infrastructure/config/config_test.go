package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
api:
  host: "0.0.0.0"
  port: 8080
timeline:
  welcome_delay_ms: 5000
  voice_fallback_ms: 10000
  result_fallback_ms: 8000
hue:
  enabled: true
  host: "192.168.1.2"
  username: "atmos-app"
  group_id: "1"
security:
  access_key: "installation-key"
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Hue.Host != "192.168.1.2" {
		t.Errorf("Hue.Host = %q, want %q", cfg.Hue.Host, "192.168.1.2")
	}
	if cfg.Timeline.WelcomeDelayMS != 5000 {
		t.Errorf("Timeline.WelcomeDelayMS = %d, want 5000", cfg.Timeline.WelcomeDelayMS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
security:
  access_key: "installation-key"
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Idempotency.TTLMinutes != 30 {
		t.Errorf("Idempotency.TTLMinutes = %d, want 30", cfg.Idempotency.TTLMinutes)
	}
	if cfg.Idempotency.SweepMinutes != 10 {
		t.Errorf("Idempotency.SweepMinutes = %d, want 10", cfg.Idempotency.SweepMinutes)
	}
	if cfg.Aggregation.CategoricalPolicy != PolicyMostRecent {
		t.Errorf("CategoricalPolicy = %q, want %q", cfg.Aggregation.CategoricalPolicy, PolicyMostRecent)
	}
	if cfg.Hue.RetryAttempts != 1 {
		t.Errorf("Hue.RetryAttempts = %d, want 1", cfg.Hue.RetryAttempts)
	}
	if cfg.Hue.ApplyTimeoutSeconds != 10 {
		t.Errorf("Hue.ApplyTimeoutSeconds = %d, want 10", cfg.Hue.ApplyTimeoutSeconds)
	}
	if len(cfg.Targets) != 3 {
		t.Fatalf("len(Targets) = %d, want 3", len(cfg.Targets))
	}
	if cfg.Targets[0].Mode != TargetModeAggregated {
		t.Errorf("Targets[0].Mode = %q, want %q", cfg.Targets[0].Mode, TargetModeAggregated)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
security:
  access_key: "installation-key"
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	t.Setenv("ATMOS_HUE_HOST", "10.0.0.9")
	t.Setenv("ATMOS_MQTT_HOST", "broker.local")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hue.Host != "10.0.0.9" {
		t.Errorf("Hue.Host = %q, want env override %q", cfg.Hue.Host, "10.0.0.9")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "missing access key",
			mutate:  func(c *Config) { c.Security.AccessKey = "" },
			wantErr: "security.access_key",
		},
		{
			name:    "bad categorical policy",
			mutate:  func(c *Config) { c.Aggregation.CategoricalPolicy = "loudest_voice" },
			wantErr: "categorical_policy",
		},
		{
			name:    "hue enabled without host",
			mutate:  func(c *Config) { c.Hue.Enabled = true },
			wantErr: "hue.host",
		},
		{
			name: "hue apply timeout must be positive",
			mutate: func(c *Config) {
				c.Hue.Enabled = true
				c.Hue.Host = "192.168.1.2"
				c.Hue.Username = "atmos-app"
				c.Hue.ApplyTimeoutSeconds = 0
			},
			wantErr: "apply_timeout_seconds",
		},
		{
			name: "duplicate target",
			mutate: func(c *Config) {
				c.Targets = append(c.Targets, TargetConfig{Name: "entrance", Mode: TargetModeAggregated})
			},
			wantErr: "duplicate target",
		},
		{
			name: "bad target mode",
			mutate: func(c *Config) {
				c.Targets = []TargetConfig{{Name: "lobby", Mode: "broadcast"}}
			},
			wantErr: "mode must be",
		},
		{
			name:    "zero welcome delay",
			mutate:  func(c *Config) { c.Timeline.WelcomeDelayMS = 0 },
			wantErr: "welcome_delay_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.AccessKey = "installation-key"
			cfg.Security.JWT.Secret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.Timeline.WelcomeDelay().Milliseconds(); got != 15000 {
		t.Errorf("WelcomeDelay() = %dms, want 15000", got)
	}
	if got := cfg.Idempotency.TTL().Minutes(); got != 30 {
		t.Errorf("TTL() = %vmin, want 30", got)
	}
	if got := cfg.Presence.ActiveWindow().Seconds(); got != 600 {
		t.Errorf("ActiveWindow() = %vs, want 600", got)
	}
}
