package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
)

const (
	sqliteBusyTimeout = 5 * time.Second

	// Fixed width so stored timestamps sort lexically.
	sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

	// Six bound values per row must stay under SQLite's variable limit.
	sqliteMaxBatchRows = 5000
)

// SQLiteDBManager keeps the same tables in a single SQLite file. It serves
// local runs without a Postgres server and the store tests.
type SQLiteDBManager struct {
	db *sqlx.DB
}

// OpenSQLite opens (creating if needed) the database at path and creates the
// tables.
func OpenSQLite(ctx context.Context, path string) (*SQLiteDBManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", abs, sqliteBusyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	m := &SQLiteDBManager{db: db}
	if err := m.CreateSubmissionsTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := m.CreateIngestionRunsTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *SQLiteDBManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *SQLiteDBManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *SQLiteDBManager) CreateSubmissionsTable(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cik TEXT NOT NULL,
			company_name TEXT NOT NULL,
			filing_date TEXT NOT NULL,
			form_type TEXT NOT NULL,
			accession_number TEXT NOT NULL,
			primary_document TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_cik ON submissions (cik, filing_date DESC);`,
	}

	for _, query := range queries {
		if _, err := m.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error creating submissions table: %v", err)
		}
	}
	return nil
}

func (m *SQLiteDBManager) CreateIngestionRunsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS ingestion_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL CHECK (status IN ('PROCESSING', 'DONE', 'DONE_WITH_ERRORS', 'SKIPPED', 'FATAL')),
		checksum TEXT,
		members INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		loaded INTEGER NOT NULL DEFAULT 0,
		errors TEXT
	);`

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("error creating ingestion_runs table: %v", err)
	}
	return nil
}

func (m *SQLiteDBManager) TruncateSubmissions(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM submissions;`); err != nil {
		return fmt.Errorf("error truncating submissions: %v", err)
	}
	return nil
}

const sqliteInsertSubmission = `INSERT INTO submissions (` + submissionColumns + `)
	VALUES (:cik, :company_name, :filing_date, :form_type, :accession_number, :primary_document)`

func (m *SQLiteDBManager) InsertSubmission(ctx context.Context, row models.FilingRow) error {
	if _, err := m.db.NamedExecContext(ctx, sqliteInsertSubmission, row); err != nil {
		return fmt.Errorf("error inserting submission %s: %v", row.AccessionNumber, err)
	}
	return nil
}

func (m *SQLiteDBManager) InsertSubmissionsBatch(ctx context.Context, rows []models.FilingRow) error {
	if len(rows) == 0 {
		return nil
	}
	return withTx(ctx, m.db, func(tx *sqlx.Tx) error {
		for start := 0; start < len(rows); start += sqliteMaxBatchRows {
			end := min(start+sqliteMaxBatchRows, len(rows))
			if _, err := tx.NamedExecContext(ctx, sqliteInsertSubmission, rows[start:end]); err != nil {
				return fmt.Errorf("error inserting batch of %d submissions: %v", len(rows), err)
			}
		}
		return nil
	})
}

func (m *SQLiteDBManager) CopySubmissions(ctx context.Context, r io.Reader) (int64, error) {
	var copied int64
	err := withTx(ctx, m.db, func(tx *sqlx.Tx) error {
		n, err := copyCSV(ctx, tx, r)
		copied = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}

func (m *SQLiteDBManager) ReplaceSubmissions(ctx context.Context, r io.Reader) (int64, error) {
	var copied int64
	err := withTx(ctx, m.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM submissions;`); err != nil {
			return fmt.Errorf("error truncating submissions: %v", err)
		}
		n, err := copyCSV(ctx, tx, r)
		copied = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return copied, nil
}

// copyCSV is the SQLite stand-in for COPY FROM STDIN: one prepared insert
// executed per CSV row.
func copyCSV(ctx context.Context, tx *sqlx.Tx, r io.Reader) (int64, error) {
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO submissions (`+submissionColumns+`) VALUES (?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return 0, fmt.Errorf("error preparing copy: %v", err)
	}
	defer stmt.Close()

	n, err := parser.ReadCSV(r, func(row models.FilingRow) error {
		_, err := stmt.ExecContext(ctx, row.CIK, row.CompanyName, row.FilingDate, row.FormType, row.AccessionNumber, row.PrimaryDocument)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("error copying submissions: %w", err)
	}
	return int64(n), nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (m *SQLiteDBManager) InsertIngestionRun(ctx context.Context, run *models.IngestionRun) error {
	errs, err := encodeRunErrors(run.Errors)
	if err != nil {
		return err
	}

	query := `INSERT INTO ingestion_runs (id, ` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err = m.db.ExecContext(ctx, query, run.ID, run.Source, formatTime(run.StartedAt), formatNullTime(run.FinishedAt),
		run.Status, nullIfEmpty(run.Checksum), run.Members, run.Matched, run.Skipped, run.Loaded, nullIfEmpty(string(errs)))
	if err != nil {
		return fmt.Errorf("error inserting ingestion run: %v", err)
	}
	return nil
}

func (m *SQLiteDBManager) UpdateIngestionRun(ctx context.Context, run *models.IngestionRun) error {
	errs, err := encodeRunErrors(run.Errors)
	if err != nil {
		return err
	}

	query := `
	UPDATE ingestion_runs
	SET finished_at = ?, status = ?, checksum = ?, members = ?, matched = ?, skipped = ?, loaded = ?, errors = ?
	WHERE id = ?;`

	res, err := m.db.ExecContext(ctx, query, formatNullTime(run.FinishedAt), run.Status, nullIfEmpty(run.Checksum),
		run.Members, run.Matched, run.Skipped, run.Loaded, nullIfEmpty(string(errs)), run.ID)
	if err != nil {
		return fmt.Errorf("error updating ingestion run: %v", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("ingestion run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (m *SQLiteDBManager) IsArchiveAlreadyLoaded(ctx context.Context, checksum string) (bool, error) {
	query := `
	SELECT COALESCE(checksum, '')
	FROM ingestion_runs
	WHERE status IN ('DONE', 'DONE_WITH_ERRORS')
	ORDER BY started_at DESC
	LIMIT 1;`

	var last string
	if err := m.db.GetContext(ctx, &last, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error finding last ingestion run: %v", err)
	}
	return last != "" && last == checksum, nil
}

type sqliteRun struct {
	ID         string         `db:"id"`
	Source     string         `db:"source"`
	StartedAt  string         `db:"started_at"`
	FinishedAt sql.NullString `db:"finished_at"`
	Status     string         `db:"status"`
	Checksum   sql.NullString `db:"checksum"`
	Members    int            `db:"members"`
	Matched    int            `db:"matched"`
	Skipped    int            `db:"skipped"`
	Loaded     int64          `db:"loaded"`
	Errors     sql.NullString `db:"errors"`
}

func (r sqliteRun) toModel() (*models.IngestionRun, error) {
	run := &models.IngestionRun{
		ID:       r.ID,
		Source:   r.Source,
		Status:   r.Status,
		Checksum: r.Checksum.String,
		Members:  r.Members,
		Matched:  r.Matched,
		Skipped:  r.Skipped,
		Loaded:   r.Loaded,
	}

	var err error
	if run.StartedAt, err = time.Parse(sqliteTimeFormat, r.StartedAt); err != nil {
		return nil, fmt.Errorf("error parsing started_at of run %s: %w", r.ID, err)
	}
	if r.FinishedAt.Valid {
		finished, err := time.Parse(sqliteTimeFormat, r.FinishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("error parsing finished_at of run %s: %w", r.ID, err)
		}
		run.FinishedAt = &finished
	}
	if run.Errors, err = decodeRunErrors([]byte(r.Errors.String)); err != nil {
		return nil, err
	}
	return run, nil
}

func (m *SQLiteDBManager) LatestIngestionRun(ctx context.Context) (*models.IngestionRun, error) {
	var row sqliteRun
	query := `SELECT id, ` + runColumns + ` FROM ingestion_runs ORDER BY started_at DESC LIMIT 1;`
	if err := m.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying latest ingestion run: %w", err)
	}
	return row.toModel()
}

func (m *SQLiteDBManager) SearchSubmissions(ctx context.Context, query string, limit int) ([]models.FilingRow, error) {
	pattern, byCIK := searchPattern(query)
	where := `LOWER(company_name) LIKE ? ESCAPE '\'`
	if byCIK {
		where = `LTRIM(cik, '0') LIKE ? ESCAPE '\'`
	}

	rows := []models.FilingRow{}
	err := m.db.SelectContext(ctx, &rows, `SELECT `+submissionColumns+` FROM submissions WHERE `+where+`
		ORDER BY filing_date DESC, id DESC LIMIT ?;`, pattern, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying submissions: %w", err)
	}
	return rows, nil
}

func (m *SQLiteDBManager) ListRecentSubmissions(ctx context.Context, limit int) ([]models.FilingRow, error) {
	rows := []models.FilingRow{}
	err := m.db.SelectContext(ctx, &rows, `SELECT `+submissionColumns+` FROM submissions
		ORDER BY filing_date DESC, id DESC LIMIT ?;`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying submissions: %w", err)
	}
	return rows, nil
}

func (m *SQLiteDBManager) CountSubmissions(ctx context.Context) (int64, error) {
	var count int64
	if err := m.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM submissions;`); err != nil {
		return 0, fmt.Errorf("error counting submissions: %w", err)
	}
	return count, nil
}
