package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Atmos Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Timeline    TimelineConfig    `yaml:"timeline"`
	Presence    PresenceConfig    `yaml:"presence"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Hue         HueConfig         `yaml:"hue"`
	Targets     []TargetConfig    `yaml:"targets"`
	Security    SecurityConfig    `yaml:"security"`
}

// SiteConfig contains installation-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the device plane
// (display controller heartbeats, device errors, lighting acknowledgments).
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TimelineConfig contains the stage fallback delays in milliseconds.
//
// These timers exist purely for resilience: if the decision-making
// collaborator is slow or unavailable, the timeline still advances so
// displays are never stuck waiting indefinitely.
type TimelineConfig struct {
	// WelcomeDelayMS is the welcome → voice-start auto-advance delay.
	WelcomeDelayMS int `yaml:"welcome_delay_ms"`

	// VoiceFallbackMS is the voice-input → orchestrated fallback delay,
	// used when no decision arrives after a voice capture.
	VoiceFallbackMS int `yaml:"voice_fallback_ms"`

	// ResultFallbackMS is the orchestrated → result fallback delay.
	ResultFallbackMS int `yaml:"result_fallback_ms"`
}

// PresenceConfig contains user presence settings.
type PresenceConfig struct {
	// ActiveWindowSeconds bounds how recently a user must have been seen
	// to participate in decision aggregation.
	ActiveWindowSeconds int `yaml:"active_window_seconds"`
}

// IdempotencyConfig contains duplicate-event ledger settings.
type IdempotencyConfig struct {
	// TTLMinutes is how long a seen event key is remembered.
	TTLMinutes int `yaml:"ttl_minutes"`

	// SweepMinutes is how often expired keys are purged.
	SweepMinutes int `yaml:"sweep_minutes"`
}

// AggregationConfig contains decision aggregation settings.
type AggregationConfig struct {
	// CategoricalPolicy selects how non-numeric preference fields
	// (light colour, music) are merged: "most_recent" or "first_active".
	CategoricalPolicy string `yaml:"categorical_policy"`

	// Default is the merged environment returned when no users are active.
	Default DefaultEnvConfig `yaml:"default"`
}

// DefaultEnvConfig is the fallback environment for empty sessions.
type DefaultEnvConfig struct {
	Temperature *float64 `yaml:"temperature"`
	Humidity    *float64 `yaml:"humidity"`
	LightColor  string   `yaml:"light_color"`
	Music       string   `yaml:"music"`
}

// HueConfig contains smart-lighting bridge settings.
type HueConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Username string `yaml:"username"`

	// GroupID is the preferred group address. When the bridge reports the
	// group resource does not exist, individual LightIDs are addressed.
	GroupID  string   `yaml:"group_id"`
	LightIDs []string `yaml:"light_ids"`

	// RetryAttempts is how many times a failed apply is retried before
	// the error is surfaced.
	RetryAttempts int `yaml:"retry_attempts"`

	// DefaultTransitionMS is used when a caller does not supply one.
	DefaultTransitionMS int `yaml:"default_transition_ms"`

	// TimeoutSeconds bounds a single bridge HTTP call.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// ApplyTimeoutSeconds bounds a whole apply, retries and per-light
	// fallback included.
	ApplyTimeoutSeconds int `yaml:"apply_timeout_seconds"`
}

// ApplyTimeout returns the end-to-end apply bound as a duration.
func (c HueConfig) ApplyTimeout() time.Duration {
	return time.Duration(c.ApplyTimeoutSeconds) * time.Second
}

// TargetConfig declares a logical display target and which environment
// it receives when a decision is routed.
type TargetConfig struct {
	// Name is the logical target identifier (e.g. "entrance", "living").
	Name string `yaml:"name"`

	// Mode is "aggregated" (shared merged environment) or "personal"
	// (the submitting user's individual result, when present).
	Mode string `yaml:"mode"`

	// Channel is the WebSocket channel the target's displays subscribe to.
	// Empty for personal targets; those route to the user's own channel.
	Channel string `yaml:"channel"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	// AccessKey is the installation shared key exchanged for a JWT.
	AccessKey string `yaml:"access_key"`

	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Target modes.
const (
	TargetModeAggregated = "aggregated"
	TargetModePersonal   = "personal"
)

// Categorical aggregation policies.
const (
	PolicyMostRecent  = "most_recent"
	PolicyFirstActive = "first_active"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ATMOS_SECTION_KEY
// For example: ATMOS_MQTT_HOST, ATMOS_HUE_USERNAME
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Atmos",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "atmos-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Timeline: TimelineConfig{
			WelcomeDelayMS:   15000,
			VoiceFallbackMS:  30000,
			ResultFallbackMS: 20000,
		},
		Presence: PresenceConfig{
			ActiveWindowSeconds: 600,
		},
		Idempotency: IdempotencyConfig{
			TTLMinutes:   30,
			SweepMinutes: 10,
		},
		Aggregation: AggregationConfig{
			CategoricalPolicy: PolicyMostRecent,
		},
		Hue: HueConfig{
			RetryAttempts:       1,
			DefaultTransitionMS: 400,
			TimeoutSeconds:      5,
			ApplyTimeoutSeconds: 10,
		},
		Targets: []TargetConfig{
			{Name: "entrance", Mode: TargetModeAggregated, Channel: "display.entrance"},
			{Name: "living", Mode: TargetModeAggregated, Channel: "display.living"},
			{Name: "personal", Mode: TargetModePersonal, Channel: ""},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ATMOS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("ATMOS_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ATMOS_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("ATMOS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ATMOS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ATMOS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Hue bridge
	if v := os.Getenv("ATMOS_HUE_HOST"); v != "" {
		cfg.Hue.Host = v
	}
	if v := os.Getenv("ATMOS_HUE_USERNAME"); v != "" {
		cfg.Hue.Username = v
	}

	// InfluxDB
	if v := os.Getenv("ATMOS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - always override in production
	if v := os.Getenv("ATMOS_ACCESS_KEY"); v != "" {
		cfg.Security.AccessKey = v
	}
	if v := os.Getenv("ATMOS_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Timeline.WelcomeDelayMS <= 0 {
		errs = append(errs, "timeline.welcome_delay_ms must be positive")
	}
	if c.Timeline.VoiceFallbackMS <= 0 {
		errs = append(errs, "timeline.voice_fallback_ms must be positive")
	}
	if c.Timeline.ResultFallbackMS <= 0 {
		errs = append(errs, "timeline.result_fallback_ms must be positive")
	}

	if c.Idempotency.TTLMinutes <= 0 {
		errs = append(errs, "idempotency.ttl_minutes must be positive")
	}

	switch c.Aggregation.CategoricalPolicy {
	case PolicyMostRecent, PolicyFirstActive:
	default:
		errs = append(errs, fmt.Sprintf("aggregation.categorical_policy must be %q or %q", PolicyMostRecent, PolicyFirstActive))
	}

	if c.Hue.Enabled {
		if c.Hue.Host == "" {
			errs = append(errs, "hue.host is required when hue.enabled is true")
		}
		if c.Hue.Username == "" {
			errs = append(errs, "hue.username is required when hue.enabled is true")
		}
		if c.Hue.RetryAttempts < 0 {
			errs = append(errs, "hue.retry_attempts must not be negative")
		}
		if c.Hue.ApplyTimeoutSeconds <= 0 {
			errs = append(errs, "hue.apply_timeout_seconds must be positive")
		}
	}

	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.Name == "" {
			errs = append(errs, "targets[].name is required")
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Sprintf("duplicate target %q", t.Name))
		}
		seen[t.Name] = true
		if t.Mode != TargetModeAggregated && t.Mode != TargetModePersonal {
			errs = append(errs, fmt.Sprintf("target %q mode must be %q or %q", t.Name, TargetModeAggregated, TargetModePersonal))
		}
	}

	// JWT secret is REQUIRED. An empty or weak secret would allow anyone on
	// the installation network to forge tokens and drive the displays.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set ATMOS_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.AccessKey == "" {
		errs = append(errs, "security.access_key is required (set ATMOS_ACCESS_KEY environment variable)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// WelcomeDelay returns the welcome stage auto-advance delay.
func (t TimelineConfig) WelcomeDelay() time.Duration {
	return time.Duration(t.WelcomeDelayMS) * time.Millisecond
}

// VoiceFallback returns the voice-input fallback delay.
func (t TimelineConfig) VoiceFallback() time.Duration {
	return time.Duration(t.VoiceFallbackMS) * time.Millisecond
}

// ResultFallback returns the orchestrated stage fallback delay.
func (t TimelineConfig) ResultFallback() time.Duration {
	return time.Duration(t.ResultFallbackMS) * time.Millisecond
}

// ActiveWindow returns the presence recency window.
func (p PresenceConfig) ActiveWindow() time.Duration {
	return time.Duration(p.ActiveWindowSeconds) * time.Second
}

// TTL returns the idempotency ledger entry lifetime.
func (i IdempotencyConfig) TTL() time.Duration {
	return time.Duration(i.TTLMinutes) * time.Minute
}

// SweepInterval returns the idempotency ledger sweep cadence.
func (i IdempotencyConfig) SweepInterval() time.Duration {
	return time.Duration(i.SweepMinutes) * time.Minute
}
