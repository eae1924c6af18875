package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/ingestion"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/sec"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/summary"
)

const recentFilingsOnHome = 10

type Lookuper interface {
	Lookup(ctx context.Context, input string) models.LookupResult
}

type Ingester interface {
	Start(ctx context.Context) error
	IngestCSV(ctx context.Context, path string) (*models.IngestionRun, error)
}

type Summarizer interface {
	Enabled() bool
	Summarize(ctx context.Context, cik string) (*models.Summary, error)
}

// FilingService holds the handlers. Every dependency is injected once at
// startup and shared across requests.
type FilingService struct {
	DBManager      database.DBManager
	Lookup         Lookuper
	Ingestion      Ingester
	Summary        Summarizer
	Logger         *zap.Logger
	UploadMaxBytes int64
	// RunContext bounds background ingestion runs. It outlives requests and
	// is cancelled on shutdown.
	RunContext context.Context
}

func NewFilingService(dbManager database.DBManager, lookup Lookuper, ingester Ingester, summarizer Summarizer, logger *zap.Logger, uploadMaxBytes int64) *FilingService {
	return &FilingService{
		DBManager:      dbManager,
		Lookup:         lookup,
		Ingestion:      ingester,
		Summary:        summarizer,
		Logger:         logger,
		UploadMaxBytes: uploadMaxBytes,
		RunContext:     context.Background(),
	}
}

func (h *FilingService) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := homePage{Companies: featuredCompanies}

	count, err := h.DBManager.CountSubmissions(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	page.Count = count

	rows, err := h.DBManager.ListRecentSubmissions(ctx, recentFilingsOnHome)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	for _, row := range rows {
		page.Recent = append(page.Recent, recentFiling{
			CIK:         row.CIK,
			CompanyName: row.CompanyName,
			FilingDate:  row.FilingDate,
			FormType:    row.FormType,
			DocumentURL: sec.DocumentURL(row.CIK, row.AccessionNumber, row.PrimaryDocument),
		})
	}

	run, err := h.DBManager.LatestIngestionRun(ctx)
	switch {
	case err == nil:
		page.LastRun = newRunView(run)
	case !errors.Is(err, database.ErrNotFound):
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.render(w, http.StatusOK, "home", page)
}

// Search runs a live lookup. Lookup outcomes other than found are rendered
// as messages, never as server errors.
func (h *FilingService) Search(w http.ResponseWriter, r *http.Request) {
	result := h.Lookup.Lookup(r.Context(), r.URL.Query().Get("cik"))
	status := lookupStatusCode(result.Status)

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, status, result)
		return
	}
	h.render(w, status, "search", result)
}

// lookupStatusCode maps a lookup outcome to the HTTP status shared by the
// search and summary endpoints.
func lookupStatusCode(status string) int {
	switch status {
	case models.LookupFound:
		return http.StatusOK
	case models.LookupInvalid:
		return http.StatusBadRequest
	case models.LookupNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (h *FilingService) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		if limit, err = strconv.Atoi(limitStr); err != nil || limit < 0 {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid 'limit': %q", limitStr))
			return
		}
	}

	var (
		rows []models.FilingRow
		err  error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		rows, err = h.DBManager.SearchSubmissions(ctx, q, limit)
	} else {
		rows, err = h.DBManager.ListRecentSubmissions(ctx, limit)
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []models.FilingRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// Upload stores the multipart field "file" in a temporary file and loads it
// like an archive run.
func (h *FilingService) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.UploadMaxBytes)
	if err := r.ParseMultipartForm(h.UploadMaxBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse upload form: %w", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("missing upload field 'file': %w", err))
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "upload-*.csv")
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, file)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to store upload: %w", err))
		return
	}

	h.Logger.Info("CSV uploaded", zap.String("filename", header.Filename), zap.Int64("bytes", header.Size))
	run, err := h.Ingestion.IngestCSV(r.Context(), tmp.Name())
	h.writeRun(w, run, err)
}

// Ingest starts an archive run in the background. The run's outcome is
// recorded in the ingestion ledger and shown on the home page.
func (h *FilingService) Ingest(w http.ResponseWriter, r *http.Request) {
	if err := h.Ingestion.Start(h.RunContext); err != nil {
		h.writeRun(w, nil, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *FilingService) writeRun(w http.ResponseWriter, run *models.IngestionRun, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, run)
	case errors.Is(err, ingestion.ErrRunInProgress):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, ingestion.ErrInvalidCSV):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, sec.ErrUnexpectedStatus):
		h.writeError(w, http.StatusBadGateway, err)
	default:
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *FilingService) Summarize(w http.ResponseWriter, r *http.Request) {
	if h.Summary == nil || !h.Summary.Enabled() {
		h.writeError(w, http.StatusServiceUnavailable, summary.ErrDisabled)
		return
	}

	result, err := h.Summary.Summarize(r.Context(), chi.URLParam(r, "cik"))
	if err != nil {
		var lookupErr *summary.LookupError
		switch {
		case errors.As(err, &lookupErr):
			writeJSON(w, lookupStatusCode(lookupErr.Result.Status), lookupErr.Result)
		case errors.Is(err, summary.ErrDisabled):
			h.writeError(w, http.StatusServiceUnavailable, err)
		default:
			h.writeError(w, http.StatusBadGateway, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *FilingService) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.DBManager.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("database unreachable: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *FilingService) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		h.Logger.Error("Failed to render page", zap.String("page", name), zap.Error(err))
	}
}

func newRunView(run *models.IngestionRun) *runView {
	view := &runView{
		Status:  run.Status,
		Source:  run.Source,
		Started: run.StartedAt.Format(time.RFC1123),
		Loaded:  run.Loaded,
		Skipped: run.Skipped,
	}
	if run.FinishedAt != nil {
		view.Finished = run.FinishedAt.Format(time.RFC1123)
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *FilingService) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		h.Logger.Warn("Request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
