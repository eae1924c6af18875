package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
)

var ErrNotFound = errors.New("not found")

// DBManager is the storage surface shared by the batch job and the API.
type DBManager interface {
	Ping(ctx context.Context) error
	CreateSubmissionsTable(ctx context.Context) error
	CreateIngestionRunsTable(ctx context.Context) error

	TruncateSubmissions(ctx context.Context) error
	InsertSubmission(ctx context.Context, row models.FilingRow) error
	InsertSubmissionsBatch(ctx context.Context, rows []models.FilingRow) error
	// CopySubmissions bulk loads an interchange CSV (header included) into
	// submissions without clearing it first.
	CopySubmissions(ctx context.Context, r io.Reader) (int64, error)
	// ReplaceSubmissions clears submissions and bulk loads r in one
	// transaction. On failure the previous contents are kept.
	ReplaceSubmissions(ctx context.Context, r io.Reader) (int64, error)

	InsertIngestionRun(ctx context.Context, run *models.IngestionRun) error
	UpdateIngestionRun(ctx context.Context, run *models.IngestionRun) error
	IsArchiveAlreadyLoaded(ctx context.Context, checksum string) (bool, error)
	LatestIngestionRun(ctx context.Context) (*models.IngestionRun, error)

	SearchSubmissions(ctx context.Context, query string, limit int) ([]models.FilingRow, error)
	ListRecentSubmissions(ctx context.Context, limit int) ([]models.FilingRow, error)
	CountSubmissions(ctx context.Context) (int64, error)
}

const (
	submissionColumns = "cik, company_name, filing_date, form_type, accession_number, primary_document"
	runColumns        = "source, started_at, finished_at, status, checksum, members, matched, skipped, loaded, errors"

	// DefaultSearchLimit applies when a caller passes a non-positive limit.
	DefaultSearchLimit = 50
	maxSearchLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

// searchPattern turns free text into a LIKE pattern. Digit-only input is
// matched as a CIK prefix with the zero padding removed, anything else as a
// case-insensitive company name substring. An all-zero CIK yields an empty
// pattern, which matches only the all-zero identifier.
func searchPattern(query string) (pattern string, byCIK bool) {
	q := strings.TrimSpace(query)
	if _, ok := parser.PadCIK(q); ok {
		trimmed := strings.TrimLeft(q, "0")
		if trimmed == "" {
			return "", true
		}
		return escapeLike(trimmed) + "%", true
	}
	return "%" + escapeLike(strings.ToLower(q)) + "%", false
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// encodeRunErrors returns nil for an empty list so the column stays NULL.
func encodeRunErrors(errs []models.AppError) ([]byte, error) {
	if len(errs) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return nil, fmt.Errorf("error encoding run errors: %w", err)
	}
	return data, nil
}

func decodeRunErrors(data []byte) ([]models.AppError, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var errs []models.AppError
	if err := json.Unmarshal(data, &errs); err != nil {
		return nil, fmt.Errorf("error decoding run errors: %w", err)
	}
	return errs, nil
}
