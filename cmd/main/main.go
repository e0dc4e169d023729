package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"steamsale/notifier/internal/config"
	"steamsale/notifier/internal/container"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Info("Starting Steam sale notifier...")

	// Load configuration from the environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.Log.Level, err)
	}
	log.SetLevel(level)
	log.Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize container with all dependencies
	app, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Run until the daily cap is reached or the process is signalled
	runErr := app.Run(ctx)

	if err := app.Close(); err != nil {
		log.Errorf("Failed to close container: %v", err)
	}

	if runErr != nil {
		log.Fatalf("Application exited with error: %v", runErr)
	}

	log.Info("Application finished successfully")
}
