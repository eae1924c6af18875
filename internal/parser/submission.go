package parser

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
)

var (
	// ErrMisalignedFilings means the parallel filing sequences of a registrant
	// differ in length, so no index can be trusted.
	ErrMisalignedFilings = errors.New("filing sequences have different lengths")
	// ErrMissingFilings means the record has no filings.recent object.
	ErrMissingFilings = errors.New("record has no recent filings")
)

// AllowedForms is the set of form types kept by the filter.
var AllowedForms = map[string]bool{
	"S-1":   true,
	"S-1/A": true,
}

func IsAllowedForm(form string) bool {
	return AllowedForms[form]
}

// FlexibleID accepts an identifier encoded either as a JSON number or a JSON
// string. The archive uses strings, older payloads use numbers.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
	default:
		*f = FlexibleID(raw)
	}
	return nil
}

// SubmissionRecord is one registrant document from the bulk archive or the
// single-registrant API.
type SubmissionRecord struct {
	CIK     FlexibleID `json:"cik"`
	Name    string     `json:"name"`
	Filings struct {
		Recent *RecentFilings `json:"recent"`
	} `json:"filings"`
}

// RecentFilings holds the parallel sequences; index i of every slice
// describes the same filing.
type RecentFilings struct {
	Form            []string `json:"form"`
	FilingDate      []string `json:"filingDate"`
	AccessionNumber []string `json:"accessionNumber"`
	PrimaryDocument []string `json:"primaryDocument"`
}

// Len returns the number of filings after checking that the sequences line
// up. primaryDocument may be absent altogether; when present it must match.
func (r *RecentFilings) Len() (int, error) {
	n := len(r.Form)
	if len(r.FilingDate) != n || len(r.AccessionNumber) != n ||
		(r.PrimaryDocument != nil && len(r.PrimaryDocument) != n) {
		return 0, fmt.Errorf("%w: form=%d filingDate=%d accessionNumber=%d primaryDocument=%d",
			ErrMisalignedFilings, n, len(r.FilingDate), len(r.AccessionNumber), len(r.PrimaryDocument))
	}
	return n, nil
}

func (r *RecentFilings) primaryDocument(i int) string {
	if i < len(r.PrimaryDocument) {
		return r.PrimaryDocument[i]
	}
	return ""
}

// DecodeSubmission parses a single registrant document.
func DecodeSubmission(data []byte) (*SubmissionRecord, error) {
	var record SubmissionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode submission: %w", err)
	}
	return &record, nil
}

// FilingRows returns one normalized row per allow-listed filing, in the
// record's own order. A misaligned record yields no rows and an error.
func (s *SubmissionRecord) FilingRows() ([]models.FilingRow, error) {
	recent := s.Filings.Recent
	if recent == nil {
		return nil, ErrMissingFilings
	}

	n, err := recent.Len()
	if err != nil {
		return nil, err
	}

	var rows []models.FilingRow
	for i := 0; i < n; i++ {
		if !IsAllowedForm(recent.Form[i]) {
			continue
		}
		rows = append(rows, NormalizeRow(
			string(s.CIK),
			s.Name,
			recent.FilingDate[i],
			recent.Form[i],
			recent.AccessionNumber[i],
			recent.primaryDocument(i),
		))
	}
	return rows, nil
}
