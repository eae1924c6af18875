package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/config"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/ingestion"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/logging"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/sec"
)

var (
	loadMode string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "data_ingestion",
	Short: "Load S-1 filings from the bulk submissions archive",
	Long: `Downloads the bulk submissions archive, keeps the S-1 and S-1/A filings of
every registrant and loads them into the submissions table.

Run without a subcommand to execute the whole pipeline once.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}

		var err error
		cfg, err = config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if loadMode != "" {
			cfg.LoadMode = loadMode
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runPipeline,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, filter and load the archive as one recorded run",
	Args:  cobra.NoArgs,
	RunE:  runPipeline,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the archive to ARCHIVE_PATH",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := sec.NewClient(sec.NewArchiveHTTPClient(), cfg.UserAgent, cfg.SubmissionsAPIURL, logger.Named("sec"))
		_, err := client.DownloadArchive(cmd.Context(), cfg.ArchiveURL, cfg.ArchivePath)
		return err
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter [archive.zip] [output.csv]",
	Short: "Write the S-1 filings of a downloaded archive to a CSV file",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		zipPath, csvPath := cfg.ArchivePath, cfg.CSVPath
		if len(args) > 0 {
			zipPath = args[0]
		}
		if len(args) > 1 {
			csvPath = args[1]
		}

		report, err := parser.NewArchiveFilter(logger.Named("filter")).FilterToCSV(cmd.Context(), zipPath, csvPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "members=%d matched=%d skipped=%d\n", report.Members, report.Matched, report.Skipped)
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load [filings.csv]",
	Short: "Replace the submissions table with the rows of a CSV file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		csvPath := cfg.CSVPath
		if len(args) > 0 {
			csvPath = args[0]
		}
		return withService(cmd.Context(), func(service *ingestion.IngestionService) (*models.IngestionRun, error) {
			return service.IngestCSV(cmd.Context(), csvPath)
		})
	},
}

func runPipeline(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(service *ingestion.IngestionService) (*models.IngestionRun, error) {
		return service.Execute(cmd.Context())
	})
}

func withService(ctx context.Context, fn func(*ingestion.IngestionService) (*models.IngestionRun, error)) error {
	startTime := time.Now()

	dbManager, closeDB, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer func() {
		logger.Info("Cleaning up resources...")
		closeDB()
	}()

	service, err := ingestion.Setup(cfg, dbManager, logger)
	if err != nil {
		return err
	}

	run, err := fn(service)
	if run != nil {
		logger.Info("Ingestion run finished",
			zap.String("run_id", run.ID),
			zap.String("status", run.Status),
			zap.Int("members", run.Members),
			zap.Int("skipped", run.Skipped),
			zap.Int64("loaded", run.Loaded),
			zap.Duration("elapsed", time.Since(startTime)))
	}
	if err != nil {
		return fmt.Errorf("error during ingestion: %w", err)
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&loadMode, "mode", "", "load mode: row, batch, copy or replace (overrides LOAD_MODE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.AddCommand(runCmd, fetchCmd, filterCmd, loadCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
