// Package main is the video management system's entry point: load
// configuration, open the Metadata Store and Credential Vault, build the
// Application composition root, and run it alongside the HTTP Control
// Surface until a termination signal arrives.
//
// Startup order:
//  1. Load and validate configuration
//  2. Initialize structured logging
//  3. Open the Metadata Store and Credential Vault
//  4. Build the Event Bus, Transcoder Driver, and Application
//  5. Start the Application fabric (Supervisors, Health Prober, Retention
//     Collector, ANPR Workers) and the Control Surface concurrently
//
// Shutdown reverses this order via context cancellation.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cortexvms/vms-core/internal/app"
	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/control"
	"github.com/cortexvms/vms-core/internal/eventbus"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/store/sqlstore"
	"github.com/cortexvms/vms-core/internal/transcoder"
	"github.com/cortexvms/vms-core/internal/vault"
)

func main() {
	configPath := os.Getenv("VMS_CONFIG_FILE")
	if configPath == "" {
		configPath = "config/default.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	_ = logging.SetupLogging(&logging.LoggingConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		MaxFileSize:    cfg.Logging.MaxFileSize,
		BackupCount:    cfg.Logging.BackupCount,
		ConsoleEnabled: cfg.Logging.ConsoleEnabled,
	})
	logger := logging.GetLogger()
	logger.Info("starting vms-core")

	masterKey := os.Getenv(cfg.Vault.MasterKeyEnv)
	credVault, err := vault.New([]byte(masterKey), cfg.Vault.KeyInfo)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize credential vault")
	}

	metadataStore, err := sqlstore.Open(cfg.Database, ".")
	if err != nil {
		logger.WithError(err).Fatal("failed to open metadata store")
	}
	defer metadataStore.Close()

	bus := eventbus.New(cfg.EventBus.SubscriberQueueSize)
	driver := transcoder.NewDriver(cfg.Transcoder, logger.WithField("component", "transcoder"))

	application := app.New(cfg, metadataStore, credVault, bus, driver, logger.WithField("component", "app"))

	jwtSecret := os.Getenv(cfg.Security.JWTSecretEnv)
	controlServer, err := control.New(application, cfg.Server, cfg.Security, jwtSecret, logger.WithField("component", "control"))
	if err != nil {
		logger.WithError(err).Fatal("failed to build control surface")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return application.Run(gctx) })
	g.Go(func() error { return controlServer.Run(gctx) })

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		logger.WithError(err).Error("vms-core exited with error")
		os.Exit(1)
	}

	logger.Info("vms-core stopped")
}
