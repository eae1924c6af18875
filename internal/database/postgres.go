package database

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
)

func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to reach database: %v", err)
	}

	return dbpool, nil
}

type PostgresDBManager struct {
	dbpool *pgxpool.Pool
}

func NewPostgresDBManager(pool *pgxpool.Pool) *PostgresDBManager {
	return &PostgresDBManager{dbpool: pool}
}

func (m *PostgresDBManager) Ping(ctx context.Context) error {
	return m.dbpool.Ping(ctx)
}

func (m *PostgresDBManager) CreateSubmissionsTable(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id BIGSERIAL PRIMARY KEY,
			cik VARCHAR(10) NOT NULL,
			company_name TEXT NOT NULL,
			filing_date VARCHAR(10) NOT NULL,
			form_type VARCHAR(20) NOT NULL,
			accession_number VARCHAR(25) NOT NULL,
			primary_document TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_cik ON submissions (cik, filing_date DESC);`,
	}

	for _, query := range queries {
		if _, err := m.dbpool.Exec(ctx, query); err != nil {
			return fmt.Errorf("error creating submissions table: %v", err)
		}
	}

	return nil
}

func (m *PostgresDBManager) CreateIngestionRunsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS ingestion_runs (
		id UUID PRIMARY KEY,
		source VARCHAR(20) NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status VARCHAR(50) NOT NULL CHECK (status IN ('PROCESSING', 'DONE', 'DONE_WITH_ERRORS', 'SKIPPED', 'FATAL')),
		checksum VARCHAR(64),
		members INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		loaded BIGINT NOT NULL DEFAULT 0,
		errors jsonb
	);`

	_, err := m.dbpool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("error creating ingestion_runs table: %v", err)
	}

	return nil
}

func (m *PostgresDBManager) TruncateSubmissions(ctx context.Context) error {
	_, err := m.dbpool.Exec(ctx, `TRUNCATE TABLE submissions RESTART IDENTITY;`)
	if err != nil {
		return fmt.Errorf("error truncating submissions: %v", err)
	}
	return nil
}

func (m *PostgresDBManager) InsertSubmission(ctx context.Context, row models.FilingRow) error {
	query := `INSERT INTO submissions (` + submissionColumns + `) VALUES ($1, $2, $3, $4, $5, $6);`

	_, err := m.dbpool.Exec(ctx, query, row.CIK, row.CompanyName, row.FilingDate, row.FormType, row.AccessionNumber, row.PrimaryDocument)
	if err != nil {
		return fmt.Errorf("error inserting submission %s: %v", row.AccessionNumber, err)
	}
	return nil
}

// InsertSubmissionsBatch queues one insert per row and sends them in a single
// round trip inside a transaction.
func (m *PostgresDBManager) InsertSubmissionsBatch(ctx context.Context, rows []models.FilingRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO submissions (` + submissionColumns + `) VALUES ($1, $2, $3, $4, $5, $6);`
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, row.CIK, row.CompanyName, row.FilingDate, row.FormType, row.AccessionNumber, row.PrimaryDocument)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("error inserting batch of %d submissions: %v", len(rows), err)
	}

	return tx.Commit(ctx)
}

// copyStatement reads the interchange CSV. FORCE_NOT_NULL loads an empty
// unquoted field as an empty string instead of NULL, which the NOT NULL
// columns would reject.
func copyStatement() string {
	return fmt.Sprintf(`COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER true, FORCE_NOT_NULL (%s))`,
		pgx.Identifier{"submissions"}.Sanitize(), submissionColumns, submissionColumns)
}

func (m *PostgresDBManager) CopySubmissions(ctx context.Context, r io.Reader) (int64, error) {
	conn, err := m.dbpool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("error acquiring connection: %v", err)
	}
	defer conn.Release()

	tag, err := conn.Conn().PgConn().CopyFrom(ctx, r, copyStatement())
	if err != nil {
		return 0, fmt.Errorf("error copying submissions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (m *PostgresDBManager) ReplaceSubmissions(ctx context.Context, r io.Reader) (int64, error) {
	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE TABLE submissions RESTART IDENTITY;`); err != nil {
		return 0, fmt.Errorf("error truncating submissions: %v", err)
	}

	tag, err := tx.Conn().PgConn().CopyFrom(ctx, r, copyStatement())
	if err != nil {
		return 0, fmt.Errorf("error copying submissions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing transaction: %v", err)
	}
	return tag.RowsAffected(), nil
}

func (m *PostgresDBManager) InsertIngestionRun(ctx context.Context, run *models.IngestionRun) error {
	errs, err := encodeRunErrors(run.Errors)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO ingestion_runs (id, ` + runColumns + `)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11);`

	_, err = m.dbpool.Exec(ctx, query, run.ID, run.Source, run.StartedAt, run.FinishedAt, run.Status, run.Checksum,
		run.Members, run.Matched, run.Skipped, run.Loaded, errs)
	if err != nil {
		return fmt.Errorf("error inserting ingestion run: %v", err)
	}
	return nil
}

func (m *PostgresDBManager) UpdateIngestionRun(ctx context.Context, run *models.IngestionRun) error {
	errs, err := encodeRunErrors(run.Errors)
	if err != nil {
		return err
	}

	query := `
	UPDATE ingestion_runs
	SET finished_at = $1,
		status = $2,
		checksum = NULLIF($3, ''),
		members = $4,
		matched = $5,
		skipped = $6,
		loaded = $7,
		errors = $8
	WHERE id = $9;`

	tag, err := m.dbpool.Exec(ctx, query, run.FinishedAt, run.Status, run.Checksum,
		run.Members, run.Matched, run.Skipped, run.Loaded, errs, run.ID)
	if err != nil {
		return fmt.Errorf("error updating ingestion run: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ingestion run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// IsArchiveAlreadyLoaded reports whether the most recent successful load came
// from an archive with this checksum.
func (m *PostgresDBManager) IsArchiveAlreadyLoaded(ctx context.Context, checksum string) (bool, error) {
	query := `
	SELECT COALESCE(checksum, '')
	FROM ingestion_runs
	WHERE status IN ('DONE', 'DONE_WITH_ERRORS')
	ORDER BY started_at DESC
	LIMIT 1;`

	var last string
	err := m.dbpool.QueryRow(ctx, query).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error finding last ingestion run: %v", err)
	}

	return last != "" && last == checksum, nil
}

func (m *PostgresDBManager) LatestIngestionRun(ctx context.Context) (*models.IngestionRun, error) {
	query := `
	SELECT id::text, source, started_at, finished_at, status, COALESCE(checksum, ''), members, matched, skipped, loaded, errors
	FROM ingestion_runs
	ORDER BY started_at DESC
	LIMIT 1;`

	run := &models.IngestionRun{}
	var errs []byte
	err := m.dbpool.QueryRow(ctx, query).Scan(&run.ID, &run.Source, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.Checksum, &run.Members, &run.Matched, &run.Skipped, &run.Loaded, &errs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying latest ingestion run: %w", err)
	}

	if run.Errors, err = decodeRunErrors(errs); err != nil {
		return nil, err
	}
	return run, nil
}

func (m *PostgresDBManager) SearchSubmissions(ctx context.Context, query string, limit int) ([]models.FilingRow, error) {
	pattern, byCIK := searchPattern(query)
	where := `LOWER(company_name) LIKE $1 ESCAPE '\'`
	if byCIK {
		where = `LTRIM(cik, '0') LIKE $1 ESCAPE '\'`
	}

	sql := `SELECT ` + submissionColumns + ` FROM submissions WHERE ` + where + `
	ORDER BY filing_date DESC, id DESC
	LIMIT $2;`

	return m.queryRows(ctx, sql, pattern, clampLimit(limit))
}

func (m *PostgresDBManager) ListRecentSubmissions(ctx context.Context, limit int) ([]models.FilingRow, error) {
	sql := `SELECT ` + submissionColumns + ` FROM submissions
	ORDER BY filing_date DESC, id DESC
	LIMIT $1;`

	return m.queryRows(ctx, sql, clampLimit(limit))
}

func (m *PostgresDBManager) CountSubmissions(ctx context.Context) (int64, error) {
	var count int64
	if err := m.dbpool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting submissions: %w", err)
	}
	return count, nil
}

func (m *PostgresDBManager) queryRows(ctx context.Context, sql string, args ...any) ([]models.FilingRow, error) {
	rows, err := m.dbpool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying submissions: %w", err)
	}

	result, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.FilingRow])
	if err != nil {
		return nil, fmt.Errorf("error scanning submissions: %w", err)
	}
	return result, nil
}
