// Command graylogic-action-core runs the MQTT-driven automation engine:
// the Action rule engine, the camera snapshot manager, and the storage
// manager, sharing one device registry and one MQTT connection.
//
// For architecture details, see DESIGN.md at the repository root.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/graylogic-action-core/internal/action"
	"github.com/nerrad567/graylogic-action-core/internal/audit"
	"github.com/nerrad567/graylogic-action-core/internal/camera"
	"github.com/nerrad567/graylogic-action-core/internal/device"
	"github.com/nerrad567/graylogic-action-core/internal/infrastructure/config"
	"github.com/nerrad567/graylogic-action-core/internal/infrastructure/database"
	"github.com/nerrad567/graylogic-action-core/internal/infrastructure/logging"
	"github.com/nerrad567/graylogic-action-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/graylogic-action-core/internal/ingress"
	"github.com/nerrad567/graylogic-action-core/internal/queue"
	"github.com/nerrad567/graylogic-action-core/internal/storage"

	_ "github.com/nerrad567/graylogic-action-core/migrations" // registers embedded SQL migrations
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when GRAYLOGIC_CONFIG is unset.
const defaultConfigPath = "/etc/graylogic/action-core.yaml"

// shutdownGrace bounds how long run gives in-flight workers, across
// all subsystems together, to drain before returning regardless.
const shutdownGrace = 2 * time.Second

func main() {
	fmt.Printf("Gray Logic Action Core %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns the config file path, honouring the
// GRAYLOGIC_CONFIG environment variable override.
func getConfigPath() string {
	if v := os.Getenv("GRAYLOGIC_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

// run wires every component and blocks until ctx is cancelled. It is
// separated from main for testability and to centralise exit-code
// handling.
func run(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting graylogic-action-core", "version", version)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // best-effort cleanup on shutdown

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(logger)
	if err := deviceRegistry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading device cache: %w", err)
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)

	actionsQ := queue.New("actions", cfg.Queues.ActionsSize)
	cameraQ := queue.New("camera", cfg.Queues.CameraSize)
	storageQ := queue.New("storage", cfg.Queues.StorageSize)
	for _, q := range []*queue.Queue{actionsQ, cameraQ, storageQ} {
		q.SetLogger(logger)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	mqttClient.SetLogger(logger)
	defer mqttClient.Close() //nolint:errcheck // best-effort cleanup on shutdown

	actionRegistry := action.NewRegistry(action.NewSQLiteRepository(db.DB), deviceRegistry)
	actionRegistry.SetLogger(logger)
	if err := actionRegistry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading action cache: %w", err)
	}

	engine := action.NewEngine(actionRegistry, deviceRegistry, mqttClient, auditRepo, actionsQ, cameraQ, storageQ)
	engine.SetLogger(logger)
	engine.SetFatal(func(reason string) {
		logger.Error("action engine watchdog fired, exiting for supervisor restart", "reason", reason)
		os.Exit(1)
	})

	cameraManager := camera.New(deviceRegistry, mqttClient, auditRepo, cameraQ)
	cameraManager.SetLogger(logger)

	storageManager := storage.New(deviceRegistry, mqttClient, auditRepo, storageQ, cfg.Storage.Root)
	storageManager.SetLogger(logger)

	ing := ingress.New(mqttClient, deviceRegistry, actionsQ, cameraQ, storageQ)
	ing.SetLogger(logger)
	if err := ing.Start(ctx); err != nil {
		return fmt.Errorf("starting ingress subscriptions: %w", err)
	}

	done := make(chan struct{})
	go func() { engine.Run(ctx); close(done) }()
	go cameraManager.Run(ctx)
	go cameraManager.RunLivenessLoop(ctx)
	go storageManager.Run(ctx)
	go storageManager.RunHeartbeatLoop(ctx)

	logger.Info("startup complete, waiting for shutdown signal")
	<-ctx.Done()
	logger.Info("shutdown signal received, draining subsystems")

	<-done
	deadline := time.Now().Add(shutdownGrace)
	engine.WaitTimeout(time.Until(deadline))
	cameraManager.WaitTimeout(time.Until(deadline))
	storageManager.WaitTimeout(time.Until(deadline))

	logger.Info("graylogic-action-core stopped")
	return nil
}
