// Atmos Core - orchestration engine for emotion-responsive spaces.
//
// This is the main entry point for the Atmos core service. It wires
// together the session timeline, the presence and preference registry,
// the event gateway, the lighting bridge, and the HTTP/WebSocket API,
// then waits for a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atmoslabs/atmos-core/internal/aggregate"
	"github.com/atmoslabs/atmos-core/internal/api"
	"github.com/atmoslabs/atmos-core/internal/bridges/hue"
	"github.com/atmoslabs/atmos-core/internal/gateway"
	"github.com/atmoslabs/atmos-core/internal/idempotency"
	"github.com/atmoslabs/atmos-core/internal/infrastructure/config"
	"github.com/atmoslabs/atmos-core/internal/infrastructure/logging"
	"github.com/atmoslabs/atmos-core/internal/infrastructure/mqtt"
	"github.com/atmoslabs/atmos-core/internal/infrastructure/telemetry"
	"github.com/atmoslabs/atmos-core/internal/registry"
	"github.com/atmoslabs/atmos-core/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Atmos Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Telemetry sink (optional)
	var telemetryClient *telemetry.Client
	if cfg.InfluxDB.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("telemetry disabled")
	}

	// Device plane over MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Presence and preference registry
	reg := registry.New()
	reg.SetLogger(log)

	// Duplicate-event ledger
	guard := idempotency.NewGuard(cfg.Idempotency.TTL())
	guard.SetLogger(log)
	guard.StartSweep(cfg.Idempotency.SweepInterval())
	defer guard.Close()

	// Session timeline
	scheduler := session.NewScheduler(session.Timings{
		WelcomeDelay:   cfg.Timeline.WelcomeDelay(),
		VoiceFallback:  cfg.Timeline.VoiceFallback(),
		ResultFallback: cfg.Timeline.ResultFallback(),
	})
	scheduler.SetLogger(log)
	defer scheduler.Close()

	// Lighting bridge
	lighting := hue.NewAdapter(hue.Config{
		Enabled:             cfg.Hue.Enabled,
		Host:                cfg.Hue.Host,
		Username:            cfg.Hue.Username,
		GroupID:             cfg.Hue.GroupID,
		LightIDs:            cfg.Hue.LightIDs,
		RetryAttempts:       cfg.Hue.RetryAttempts,
		DefaultTransitionMS: cfg.Hue.DefaultTransitionMS,
		Timeout:             time.Duration(cfg.Hue.TimeoutSeconds) * time.Second,
	})
	lighting.SetLogger(log)
	if cfg.Hue.Enabled {
		log.Info("lighting bridge enabled", "host", cfg.Hue.Host, "group", cfg.Hue.GroupID)
	} else {
		log.Info("lighting bridge disabled")
	}

	// WebSocket hub: created up front so the gateway can broadcast
	// through it from the first event.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Event gateway. Disabled subsystems stay nil interfaces rather
	// than typed-nil pointers.
	gwDeps := gateway.Deps{
		Registry:    reg,
		Scheduler:   scheduler,
		Guard:       guard,
		Broadcaster: hub,
		Lighting:    lighting,
		Logger:      log,
	}
	if mqttClient != nil {
		gwDeps.Publisher = mqttClient
	}
	if telemetryClient != nil {
		gwDeps.Telemetry = telemetryClient
	}
	gw := gateway.New(buildGatewayConfig(cfg), gwDeps)
	if mqttClient != nil {
		if bindErr := gw.BindDevicePlane(mqttClient, byte(cfg.MQTT.QoS)); bindErr != nil {
			return fmt.Errorf("binding device plane: %w", bindErr)
		}
		log.Info("device plane bound", "qos", cfg.MQTT.QoS)
	}

	// HTTP / WebSocket API
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Registry:     reg,
		Scheduler:    scheduler,
		Gateway:      gw,
		ActiveWindow: cfg.Presence.ActiveWindow(),
		ExternalHub:  hub,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify connections are healthy
	if err := healthCheck(ctx, mqttClient, telemetryClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal", "site", cfg.Site.Name)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Scheduler and idempotency guard
	// 3. MQTT (if enabled)
	// 4. Telemetry (if enabled)

	log.Info("Atmos Core stopped")
	return nil
}

// buildGatewayConfig maps file configuration onto the gateway's
// routing and aggregation settings.
func buildGatewayConfig(cfg *config.Config) gateway.Config {
	targets := make([]gateway.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets = append(targets, gateway.Target{
			Name:    t.Name,
			Mode:    t.Mode,
			Channel: t.Channel,
		})
	}

	defaults := registry.Environment{
		Temperature: cfg.Aggregation.Default.Temperature,
		Humidity:    cfg.Aggregation.Default.Humidity,
	}
	if cfg.Aggregation.Default.LightColor != "" {
		c := cfg.Aggregation.Default.LightColor
		defaults.LightColor = &c
	}
	if cfg.Aggregation.Default.Music != "" {
		m := cfg.Aggregation.Default.Music
		defaults.Music = &m
	}

	return gateway.Config{
		Targets:         targets,
		ActiveWindow:    cfg.Presence.ActiveWindow(),
		Policy:          aggregate.CategoricalPolicy(cfg.Aggregation.CategoricalPolicy),
		Defaults:        defaults,
		LightingTimeout: cfg.Hue.ApplyTimeout(),
	}
}

// getConfigPath returns the configuration file path.
// Uses the ATMOS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ATMOS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy. Both
// clients may be nil when their subsystem is disabled.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, telemetryClient *telemetry.Client) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}
