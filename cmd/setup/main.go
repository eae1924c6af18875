package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/config"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting database setup...", zap.String("driver", cfg.StoreDriver))

	// Open creates the submissions and ingestion_runs tables.
	_, closeDB, err := database.Open(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Database setup failed", zap.Error(err))
	}
	closeDB()

	logger.Info("Database setup finished successfully.")
}
