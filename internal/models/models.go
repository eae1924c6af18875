package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FilingRow is one allow-listed filing flattened into the six stored columns.
type FilingRow struct {
	CIK             string `json:"cik" db:"cik"`
	CompanyName     string `json:"company_name" db:"company_name"`
	FilingDate      string `json:"filing_date" db:"filing_date"`
	FormType        string `json:"form_type" db:"form_type"`
	AccessionNumber string `json:"accession_number" db:"accession_number"`
	PrimaryDocument string `json:"primary_document" db:"primary_document"`
}

// Fields returns the row in column order.
func (r FilingRow) Fields() []string {
	return []string{r.CIK, r.CompanyName, r.FilingDate, r.FormType, r.AccessionNumber, r.PrimaryDocument}
}

// AppError records why one archive member (or uploaded CSV line) was skipped.
type AppError struct {
	Member  string     `json:"member"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
	Row     *FilingRow `json:"row,omitempty"`
}

func (e *AppError) Error() string {
	var rowDetails string
	if e.Row != nil {
		rowJSON, err := json.Marshal(e.Row)
		if err != nil {
			rowDetails = "failed to marshal row to JSON"
		} else {
			rowDetails = string(rowJSON)
		}
	}

	if e.Err != nil {
		if rowDetails != "" {
			return fmt.Sprintf("%s: %s - %v - Row: %s", e.Member, e.Message, e.Err, rowDetails)
		}
		return fmt.Sprintf("%s: %s - %v", e.Member, e.Message, e.Err)
	}

	if rowDetails != "" {
		return fmt.Sprintf("%s: %s - Row: %s", e.Member, e.Message, rowDetails)
	}

	return fmt.Sprintf("%s: %s", e.Member, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// MarshalJSON keeps the wrapped error's text, which encoding/json would drop.
func (e AppError) MarshalJSON() ([]byte, error) {
	type alias AppError
	var errText string
	if e.Err != nil {
		errText = e.Err.Error()
	}
	return json.Marshal(struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(e), Error: errText})
}

const (
	RunStatusProcessing     = "PROCESSING"
	RunStatusDone           = "DONE"
	RunStatusDoneWithErrors = "DONE_WITH_ERRORS"
	RunStatusSkipped        = "SKIPPED"
	RunStatusFatal          = "FATAL"
)

const (
	RunSourceArchive = "archive"
	RunSourceUpload  = "upload"
)

// IngestionRun is one row of the ingestion_runs ledger.
type IngestionRun struct {
	ID         string     `json:"id" db:"id"`
	Source     string     `json:"source" db:"source"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Status     string     `json:"status" db:"status"`
	Checksum   string     `json:"checksum,omitempty" db:"checksum"`
	Members    int        `json:"members" db:"members"`
	Matched    int        `json:"matched" db:"matched"`
	Skipped    int        `json:"skipped" db:"skipped"`
	Loaded     int64      `json:"loaded" db:"loaded"`
	Errors     []AppError `json:"errors,omitempty" db:"-"`
}

const (
	LookupFound       = "found"
	LookupNotFound    = "not_found"
	LookupInvalid     = "invalid"
	LookupMalformed   = "malformed"
	LookupUnavailable = "unavailable"
)

// LookupResult is the outcome of a live single-registrant lookup. Status is
// one of the Lookup* constants; Filing is set only when Status is found.
type LookupResult struct {
	CIK         string     `json:"cik"`
	Status      string     `json:"status"`
	CompanyName string     `json:"company_name,omitempty"`
	Filing      *FilingRow `json:"filing,omitempty"`
	DocumentURL string     `json:"document_url,omitempty"`
	Message     string     `json:"message,omitempty"`
	FallbackURL string     `json:"fallback_url"`
}

func (r LookupResult) Found() bool {
	return r.Status == LookupFound
}

// Summary is the LLM digest of a registrant's most recent S-1.
type Summary struct {
	CIK         string `json:"cik"`
	CompanyName string `json:"company_name"`
	FormType    string `json:"form_type"`
	FilingDate  string `json:"filing_date"`
	DocumentURL string `json:"document_url"`
	Text        string `json:"summary"`
}
