// Hearth Cloud - Edge Synchronization & Command Queue
//
// This is the main entry point for the Hearth Cloud service. It terminates
// the edge sync protocol (HMAC-signed heartbeats, device registration,
// telemetry batches, command poll/ack), serves the user-facing JSON API,
// and fans command lifecycle events out over WebSocket and MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/hearthlabs/hearth-cloud/migrations"

	"github.com/hearthlabs/hearth-cloud/internal/api"
	"github.com/hearthlabs/hearth-cloud/internal/auth"
	"github.com/hearthlabs/hearth-cloud/internal/command"
	"github.com/hearthlabs/hearth-cloud/internal/edge"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/config"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/database"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/influxdb"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/mqtt"
	"github.com/hearthlabs/hearth-cloud/internal/registry"
	"github.com/hearthlabs/hearth-cloud/internal/signature"
	"github.com/hearthlabs/hearth-cloud/internal/telemetry"
	"github.com/hearthlabs/hearth-cloud/internal/topology"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Cloud",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker (optional event fan-out)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional telemetry history mirror)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Repositories
	authRepo := auth.NewSQLiteRepository(db.DB)
	edgeRepo := edge.NewSQLiteRepository(db.DB)
	registryRepo := registry.NewSQLiteRepository(db.DB)
	telemetryRepo := telemetry.NewSQLiteRepository(db.DB)
	commandRepo := command.NewSQLiteRepository(db.DB)
	topoRepo := topology.NewSQLiteRepository(db.DB)

	// The WebSocket hub is created up front so the command queue can feed
	// it lifecycle events; the API server adopts it instead of creating
	// its own.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Command lifecycle events fan out to WebSocket clients and, when the
	// broker is configured, to MQTT.
	var mqttEvents *mqtt.EventPublisher
	eventSinks := []command.Events{hub}
	if mqttClient != nil {
		mqttEvents = mqtt.NewEventPublisher(mqttClient, log)
		eventSinks = append(eventSinks, mqttEvents)
	}

	// Domain services
	codec := signature.NewCodec(cfg.Edge.SharedSecret)
	pusher := edge.NewClient(codec, time.Duration(cfg.Edge.PushTimeout)*time.Second, log)

	mirrors := []telemetry.Mirror{&telemetryEventMirror{hub: hub, events: mqttEvents}}
	if influxClient != nil {
		mirrors = append(mirrors, influxClient)
	}
	telemetrySvc := telemetry.NewService(telemetryRepo, log, mirrors...)
	authSvc := auth.NewService(authRepo, cfg.Security.JWT, log)
	registrySvc := registry.NewService(registryRepo, topoRepo, log)
	commandSvc := command.NewService(commandRepo, edgeRepo, pusher, cfg.Edge.PollBatchSize, log, eventSinks...)
	topologySvc := topology.NewService(topoRepo, commandSvc, log)

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		EdgeCfg:     cfg.Edge,
		Security:    cfg.Security,
		Logger:      log,
		Auth:        authSvc,
		EdgeRepo:    edgeRepo,
		Registry:    registrySvc,
		Telemetry:   telemetrySvc,
		Commands:    commandSvc,
		Topology:    topologySvc,
		TopoRepo:    topoRepo,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"edge_prefix", cfg.Edge.MountPrefix,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (drains in-flight requests)
	// 2. InfluxDB (if enabled, flushes buffered points)
	// 3. MQTT (if enabled, publishes offline status)
	// 4. Database

	log.Info("Hearth Cloud stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - server: API server to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// telemetryEventMirror fans accepted sensor readings out to the realtime
// sinks alongside the durable cache: a hub broadcast for connected UI
// clients and, when the broker is configured, a per-entity MQTT topic.
type telemetryEventMirror struct {
	hub    *api.Hub
	events *mqtt.EventPublisher
	topics mqtt.Topics
}

// WriteReading implements telemetry.Mirror.
func (m *telemetryEventMirror) WriteReading(siteID, deviceKey, entityKey string, value float64, unit string, recordedAt time.Time) {
	payload := map[string]any{
		"siteId":     siteID,
		"deviceKey":  deviceKey,
		"entityKey":  entityKey,
		"value":      value,
		"unit":       unit,
		"recordedAt": recordedAt.UTC().Format(time.RFC3339),
	}
	m.hub.Publish("telemetry.updated", payload)
	if m.events != nil {
		m.events.Publish(m.topics.Telemetry(siteID, deviceKey, entityKey), payload)
	}
}
