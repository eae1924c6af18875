package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
	"github.com/ThiagoRGoveia/s1-filings.git/pkg/checksum"
)

var (
	ErrRunInProgress = errors.New("an ingestion run is already in progress")
	ErrInvalidCSV    = errors.New("invalid CSV upload")
)

// ArchiveFetcher downloads the bulk submissions archive.
type ArchiveFetcher interface {
	DownloadArchive(ctx context.Context, url, dst string) (int64, error)
}

// Filter turns an archive into an interchange CSV of allow-listed filings.
type Filter interface {
	FilterToCSV(ctx context.Context, zipPath, csvPath string) (*parser.FilterReport, error)
}

// BulkLoader loads an interchange CSV into the store.
type BulkLoader interface {
	Load(ctx context.Context, csvPath string) (LoadResult, error)
}

type ServiceConfig struct {
	ArchiveURL    string
	ArchivePath   string
	CSVPath       string
	SkipUnchanged bool
}

// IngestionService runs fetch, filter and load as one recorded run. It is the
// only writer of the submissions table; concurrent triggers are rejected.
type IngestionService struct {
	dbManager database.DBManager
	fetcher   ArchiveFetcher
	filter    Filter
	loader    BulkLoader
	config    ServiceConfig
	logger    *zap.Logger

	mu  sync.Mutex
	wg  sync.WaitGroup
	now func() time.Time
}

func NewIngestionService(dbManager database.DBManager, fetcher ArchiveFetcher, filter Filter, loader BulkLoader, cfg ServiceConfig, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		dbManager: dbManager,
		fetcher:   fetcher,
		filter:    filter,
		loader:    loader,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute orchestrates one archive run. A failed download returns before the
// store is touched. Once a run row exists, every outcome is written back to it.
func (s *IngestionService) Execute(ctx context.Context) (*models.IngestionRun, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	return s.execute(ctx)
}

// Start runs Execute in the background and returns once the run owns the
// writer lock. Cancelling ctx stops the run between archive members.
func (s *IngestionService) Start(ctx context.Context) error {
	if !s.mu.TryLock() {
		return ErrRunInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		if _, err := s.execute(ctx); err != nil {
			s.logger.Error("Background ingestion run failed", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until runs launched by Start have finished.
func (s *IngestionService) Wait() {
	s.wg.Wait()
}

func (s *IngestionService) execute(ctx context.Context) (*models.IngestionRun, error) {
	startedAt := s.now()

	// Step 1: Fetch the archive. Nothing is written to the store on failure.
	if _, err := s.fetcher.DownloadArchive(ctx, s.config.ArchiveURL, s.config.ArchivePath); err != nil {
		s.logger.Error("Failed to fetch archive", zap.String("url", s.config.ArchiveURL), zap.Error(err))
		CounterIngestionRuns.WithLabelValues(models.RunStatusFatal).Inc()
		return nil, fmt.Errorf("failed to fetch archive: %w", err)
	}

	sum, err := checksum.GetFileChecksum(s.config.ArchivePath)
	if err != nil {
		CounterIngestionRuns.WithLabelValues(models.RunStatusFatal).Inc()
		return nil, fmt.Errorf("failed to checksum archive: %w", err)
	}

	run := &models.IngestionRun{
		ID:        uuid.NewString(),
		Source:    models.RunSourceArchive,
		StartedAt: startedAt,
		Status:    models.RunStatusProcessing,
		Checksum:  sum,
	}

	// Step 2: Skip the load when this exact archive is already in the table.
	if s.config.SkipUnchanged {
		loaded, err := s.dbManager.IsArchiveAlreadyLoaded(ctx, sum)
		if err != nil {
			return nil, err
		}
		if loaded {
			s.logger.Info("Archive already loaded, skipping", zap.String("checksum", sum))
			run.Status = models.RunStatusSkipped
			finishedAt := s.now()
			run.FinishedAt = &finishedAt
			if err := s.dbManager.InsertIngestionRun(ctx, run); err != nil {
				return nil, err
			}
			s.observe(run)
			return run, nil
		}
	}

	if err := s.dbManager.InsertIngestionRun(ctx, run); err != nil {
		return nil, err
	}
	s.logger.Info("Ingestion run started", zap.String("run_id", run.ID), zap.String("checksum", sum))

	// Step 3: Filter the archive into the interchange CSV.
	report, err := s.filter.FilterToCSV(ctx, s.config.ArchivePath, s.config.CSVPath)
	if report != nil {
		run.Members, run.Matched, run.Skipped = report.Members, report.Matched, report.Skipped
		run.Errors = report.Errors
		CounterArchiveMembers.Add(float64(report.Members))
		CounterArchiveMembersSkipped.Add(float64(report.Skipped))
		CounterFilingRowsMatched.Add(float64(report.Matched))
	}
	if err != nil {
		return run, s.fail(ctx, run, fmt.Errorf("failed to filter archive: %w", err))
	}

	// Step 4: Load the CSV.
	result, err := s.loader.Load(ctx, s.config.CSVPath)
	run.Loaded = result.Rows
	if err != nil {
		return run, s.fail(ctx, run, err)
	}

	status := models.RunStatusDone
	if run.Skipped > 0 {
		status = models.RunStatusDoneWithErrors
	}
	return run, s.finish(ctx, run, status)
}

// IngestCSV loads an uploaded interchange CSV through the same loader and
// ledger. The upload is validated and normalized into a temporary file first,
// so a malformed upload never reaches the table.
func (s *IngestionService) IngestCSV(ctx context.Context, path string) (*models.IngestionRun, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	sum, err := checksum.GetFileChecksum(path)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum upload: %w", err)
	}

	run := &models.IngestionRun{
		ID:        uuid.NewString(),
		Source:    models.RunSourceUpload,
		StartedAt: s.now(),
		Status:    models.RunStatusProcessing,
		Checksum:  sum,
	}
	if err := s.dbManager.InsertIngestionRun(ctx, run); err != nil {
		return nil, err
	}
	s.logger.Info("Upload run started", zap.String("run_id", run.ID), zap.String("path", path))

	normalized, rows, err := normalizeUpload(path)
	if err != nil {
		return run, s.fail(ctx, run, fmt.Errorf("%w: %v", ErrInvalidCSV, err))
	}
	defer os.Remove(normalized)
	run.Matched = rows

	result, err := s.loader.Load(ctx, normalized)
	run.Loaded = result.Rows
	if err != nil {
		return run, s.fail(ctx, run, err)
	}
	return run, s.finish(ctx, run, models.RunStatusDone)
}

// normalizeUpload rewrites an uploaded CSV in canonical form and returns the
// temporary file's path with the number of data rows.
func normalizeUpload(path string) (string, int, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(path), "normalized-*.csv")
	if err != nil {
		return "", 0, err
	}

	writer := parser.NewCSVWriter(out)
	rows, err := parser.ReadCSV(in, func(row models.FilingRow) error {
		return writer.Write(parser.NormalizeRow(row.CIK, row.CompanyName, row.FilingDate, row.FormType, row.AccessionNumber, row.PrimaryDocument))
	})
	if err == nil {
		err = writer.Flush()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(out.Name())
		return "", 0, err
	}
	return out.Name(), rows, nil
}

func (s *IngestionService) fail(ctx context.Context, run *models.IngestionRun, cause error) error {
	s.logger.Error("Ingestion run failed", zap.String("run_id", run.ID), zap.Error(cause))
	run.Errors = append(run.Errors, models.AppError{Member: run.Source, Message: "Run failed", Err: cause})
	if err := s.finish(ctx, run, models.RunStatusFatal); err != nil {
		s.logger.Error("Failed to record run failure", zap.String("run_id", run.ID), zap.Error(err))
	}
	return cause
}

func (s *IngestionService) finish(ctx context.Context, run *models.IngestionRun, status string) error {
	finishedAt := s.now()
	run.FinishedAt = &finishedAt
	run.Status = status

	// The ledger is written even when the run was cancelled.
	if err := s.dbManager.UpdateIngestionRun(context.WithoutCancel(ctx), run); err != nil {
		return fmt.Errorf("failed to update ingestion run %s: %w", run.ID, err)
	}
	s.observe(run)

	s.logger.Info("Ingestion run finished",
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.Int("members", run.Members),
		zap.Int("matched", run.Matched),
		zap.Int("skipped", run.Skipped),
		zap.Int64("loaded", run.Loaded))
	return nil
}

func (s *IngestionService) observe(run *models.IngestionRun) {
	CounterIngestionRuns.WithLabelValues(run.Status).Inc()
	if run.FinishedAt != nil {
		HistogramIngestionRunDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	}
}
