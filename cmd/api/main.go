package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/config"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/ingestion"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/logging"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/sec"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/server"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/summary"
)

const shutdownTimeout = 15 * time.Second

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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbManager, closeDB, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}
	defer closeDB()

	ingester, err := ingestion.Setup(cfg, dbManager, logger)
	if err != nil {
		return err
	}
	client := sec.NewClient(sec.NewLookupHTTPClient(), cfg.UserAgent, cfg.SubmissionsAPIURL, logger.Named("sec"))
	lookup := sec.NewLookupService(client, logger.Named("lookup"))

	var summarizer summary.Summarizer
	if cfg.GeminiAPIKey != "" {
		genaiSummarizer, err := summary.NewGenAISummarizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		summarizer = genaiSummarizer
	} else {
		logger.Info("GEMINI_API_KEY is not set; summaries are disabled")
	}
	summaries := summary.NewService(lookup, client, summarizer, logger.Named("summary"))

	g, gCtx := errgroup.WithContext(ctx)

	filings := server.NewFilingService(dbManager, lookup, ingester, summaries, logger.Named("http"), int64(cfg.UploadMaxBytes))
	filings.RunContext = gCtx

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.APIPort),
		Handler:           server.SetupRoutes(filings),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Background runs see gCtx cancelled and record themselves as failed.
		ingester.Wait()
		return err
	})

	return g.Wait()
}
