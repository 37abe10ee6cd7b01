package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"forum-service/internal/config"
	"forum-service/internal/server"
	"forum-service/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	appLogger, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting forum server")

	app, err := server.NewApp(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		appLogger.Error("Application error", "error", err)
		os.Exit(1)
	}
}
