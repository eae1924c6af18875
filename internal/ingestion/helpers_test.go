package ingestion

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
)

// MockDBManager is a mock implementation of the DBManager interface.
type MockDBManager struct {
	mock.Mock
}

func (m *MockDBManager) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDBManager) CreateSubmissionsTable(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDBManager) CreateIngestionRunsTable(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDBManager) TruncateSubmissions(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDBManager) InsertSubmission(ctx context.Context, row models.FilingRow) error {
	return m.Called(ctx, row).Error(0)
}

func (m *MockDBManager) InsertSubmissionsBatch(ctx context.Context, rows []models.FilingRow) error {
	// The caller reuses the slice, so record a copy.
	batch := append([]models.FilingRow(nil), rows...)
	return m.Called(ctx, batch).Error(0)
}

func (m *MockDBManager) CopySubmissions(ctx context.Context, r io.Reader) (int64, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBManager) ReplaceSubmissions(ctx context.Context, r io.Reader) (int64, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBManager) InsertIngestionRun(ctx context.Context, run *models.IngestionRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockDBManager) UpdateIngestionRun(ctx context.Context, run *models.IngestionRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockDBManager) IsArchiveAlreadyLoaded(ctx context.Context, checksum string) (bool, error) {
	args := m.Called(ctx, checksum)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBManager) LatestIngestionRun(ctx context.Context) (*models.IngestionRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IngestionRun), args.Error(1)
}

func (m *MockDBManager) SearchSubmissions(ctx context.Context, query string, limit int) ([]models.FilingRow, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FilingRow), args.Error(1)
}

func (m *MockDBManager) ListRecentSubmissions(ctx context.Context, limit int) ([]models.FilingRow, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FilingRow), args.Error(1)
}

func (m *MockDBManager) CountSubmissions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) DownloadArchive(ctx context.Context, url, dst string) (int64, error) {
	args := m.Called(ctx, url, dst)
	return args.Get(0).(int64), args.Error(1)
}

type MockFilter struct {
	mock.Mock
}

func (m *MockFilter) FilterToCSV(ctx context.Context, zipPath, csvPath string) (*parser.FilterReport, error) {
	args := m.Called(ctx, zipPath, csvPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*parser.FilterReport), args.Error(1)
}

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context, csvPath string) (LoadResult, error) {
	args := m.Called(ctx, csvPath)
	return args.Get(0).(LoadResult), args.Error(1)
}

const appleSubmission = `{"cik": 320193, "name": "Apple Inc.", "filings":{"recent":{"form":["10-K","S-1","S-1/A"],"filingDate":["2020-01-01","2019-05-01","2019-06-01"],"accessionNumber":["0000320193-20-000001","0000320193-19-000002","0000320193-19-000003"]}}}`

const misalignedSubmission = `{"cik": "1", "name": "Broken Co", "filings":{"recent":{"form":["S-1","S-1"],"filingDate":["2020-01-01"],"accessionNumber":["a","b"]}}}`

const validCSV = `cik,company_name,filing_date,form_type,accession_number,primary_document
0000320193,Apple Inc.,2019-05-01,S-1,0000320193-19-000002,s1.htm
0000320193,Apple Inc.,2019-06-01,S-1/A,0000320193-19-000003,s1a.htm
0001234567,Acme Corp,2021-03-15,S-1,0001234567-21-000001,acme.htm
`

// brokenCSV has two good rows followed by a short one.
const brokenCSV = `cik,company_name,filing_date,form_type,accession_number,primary_document
0000000001,First,2020-01-01,S-1,0000000001-20-000001,a.htm
0000000002,Second,2020-01-02,S-1,0000000002-20-000001,b.htm
0000000003,Third,2020-01-03
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func newTestStore(t *testing.T) *database.SQLiteDBManager {
	t.Helper()
	store, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}
