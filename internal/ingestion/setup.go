package ingestion

import (
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/config"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/sec"
)

// Setup assembles an IngestionService from cfg. The archive is fetched with a
// client that has no overall timeout.
func Setup(cfg *config.Config, dbManager database.DBManager, logger *zap.Logger) (*IngestionService, error) {
	client := sec.NewClient(sec.NewArchiveHTTPClient(), cfg.UserAgent, cfg.SubmissionsAPIURL, logger.Named("sec"))

	mode, err := ParseLoadMode(cfg.LoadMode)
	if err != nil {
		return nil, err
	}
	loader, err := NewLoader(dbManager, LoaderConfig{Mode: mode, BatchSize: cfg.DBBatchSize}, logger.Named("loader"))
	if err != nil {
		return nil, err
	}

	service := NewIngestionService(
		dbManager,
		client,
		parser.NewArchiveFilter(logger.Named("filter")),
		loader,
		ServiceConfig{
			ArchiveURL:    cfg.ArchiveURL,
			ArchivePath:   cfg.ArchivePath,
			CSVPath:       cfg.CSVPath,
			SkipUnchanged: cfg.SkipUnchanged,
		},
		logger.Named("ingestion"),
	)
	return service, nil
}
