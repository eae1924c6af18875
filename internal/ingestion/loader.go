package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
)

const (
	// LoadModeRow truncates, then inserts one statement per row.
	LoadModeRow = "row"
	// LoadModeBatch truncates, then inserts committed batches of BatchSize rows.
	LoadModeBatch = "batch"
	// LoadModeCopy truncates, then streams the file with a bulk copy.
	LoadModeCopy = "copy"
	// LoadModeReplace truncates and copies inside one transaction.
	LoadModeReplace = "replace"
)

var ErrInvalidLoadMode = errors.New("invalid load mode")

// ParseLoadMode validates a mode name. An empty name selects LoadModeReplace.
func ParseLoadMode(mode string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "":
		return LoadModeReplace, nil
	case LoadModeRow, LoadModeBatch, LoadModeCopy, LoadModeReplace:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (expected row, batch, copy or replace)", ErrInvalidLoadMode, mode)
	}
}

type LoaderConfig struct {
	Mode      string
	BatchSize int
}

type LoadResult struct {
	Mode string `json:"mode"`
	Rows int64  `json:"rows"`
}

// Loader replaces the submissions table with the contents of an interchange
// CSV. Only LoadModeReplace is atomic: the other modes clear the table first,
// so a failure part way leaves it empty or partially filled.
type Loader struct {
	dbManager database.DBManager
	config    LoaderConfig
	logger    *zap.Logger
}

func NewLoader(dbManager database.DBManager, cfg LoaderConfig, logger *zap.Logger) (*Loader, error) {
	mode, err := ParseLoadMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	return &Loader{dbManager: dbManager, config: cfg, logger: logger}, nil
}

func (l *Loader) Mode() string {
	return l.config.Mode
}

func (l *Loader) Load(ctx context.Context, csvPath string) (LoadResult, error) {
	result := LoadResult{Mode: l.config.Mode}

	file, err := os.Open(csvPath)
	if err != nil {
		return result, fmt.Errorf("failed to open CSV %s: %w", csvPath, err)
	}
	defer file.Close()

	l.logger.Info("Loading filings", zap.String("path", csvPath), zap.String("mode", l.config.Mode))

	switch l.config.Mode {
	case LoadModeReplace:
		result.Rows, err = l.dbManager.ReplaceSubmissions(ctx, file)
	case LoadModeCopy:
		if err = l.dbManager.TruncateSubmissions(ctx); err != nil {
			return result, err
		}
		result.Rows, err = l.dbManager.CopySubmissions(ctx, file)
	case LoadModeBatch:
		if err = l.dbManager.TruncateSubmissions(ctx); err != nil {
			return result, err
		}
		result.Rows, err = NewBatchWorker(l.dbManager, l.config.BatchSize, l.logger).Run(ctx, file)
	case LoadModeRow:
		if err = l.dbManager.TruncateSubmissions(ctx); err != nil {
			return result, err
		}
		var n int
		n, err = parser.ReadCSV(file, func(row models.FilingRow) error {
			return l.dbManager.InsertSubmission(ctx, row)
		})
		result.Rows = int64(n)
	}

	if result.Rows > 0 {
		CounterFilingRowsLoaded.WithLabelValues(l.config.Mode).Add(float64(result.Rows))
	}
	if err != nil {
		return result, fmt.Errorf("failed to load %s in %s mode: %w", csvPath, l.config.Mode, err)
	}

	l.logger.Info("Filings loaded", zap.String("mode", l.config.Mode), zap.Int64("rows", result.Rows))
	return result, nil
}
