package main

import (
	"log"
	"os"

	"forum-service/internal/config"
	"forum-service/internal/database"
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

	appLogger.Info("Starting database migration...")

	db, err := database.NewPostgresConnection(cfg.Database.URI)
	if err != nil {
		appLogger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(db); err != nil {
		appLogger.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	appLogger.Info("Database migration completed successfully!")
}
