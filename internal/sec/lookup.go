package sec

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
)

const (
	archivesBaseURL = "https://www.sec.gov/Archives/edgar/data"
	browseURL       = "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=%s&type=S-1&dateb=&owner=include&count=40"
)

var ErrInvalidCIK = errors.New("CIK must be 1 to 10 digits")

// ValidateCIK trims and zero-pads a user supplied identifier.
func ValidateCIK(input string) (string, error) {
	cik, ok := parser.PadCIK(input)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCIK, strings.TrimSpace(input))
	}
	return cik, nil
}

// DocumentURL builds the browsable address of a filing's primary document.
// The archive path uses the identifier without padding and the accession
// number without hyphens.
func DocumentURL(cik, accessionNumber, primaryDocument string) string {
	unpadded := strings.TrimLeft(cik, "0")
	if unpadded == "" {
		unpadded = "0"
	}
	accession := strings.ReplaceAll(accessionNumber, "-", "")
	return fmt.Sprintf("%s/%s/%s/%s", archivesBaseURL, unpadded, accession, primaryDocument)
}

// FallbackURL points at the provider's own search page for a registrant. The
// identifier may be raw user input, so it is query-escaped.
func FallbackURL(cik string) string {
	return fmt.Sprintf(browseURL, url.QueryEscape(strings.TrimSpace(cik)))
}

// SortByFilingDateDesc orders rows newest first. Dates compare as strings,
// which is only correct for ISO 8601 (YYYY-MM-DD) values.
func SortByFilingDateDesc(rows []models.FilingRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].FilingDate > rows[j].FilingDate
	})
}

// SubmissionFetcher is the part of Client the lookup needs.
type SubmissionFetcher interface {
	FetchSubmission(ctx context.Context, cik string) (*parser.SubmissionRecord, error)
}

// LookupService answers "what is this registrant's latest S-1" from the live
// API. It never returns an error; failures are reported in the result.
type LookupService struct {
	fetcher SubmissionFetcher
	logger  *zap.Logger
}

func NewLookupService(fetcher SubmissionFetcher, logger *zap.Logger) *LookupService {
	return &LookupService{fetcher: fetcher, logger: logger}
}

func (s *LookupService) Lookup(ctx context.Context, input string) models.LookupResult {
	result := models.LookupResult{CIK: strings.TrimSpace(input), FallbackURL: FallbackURL(strings.TrimSpace(input))}

	cik, err := ValidateCIK(input)
	if err != nil {
		result.Status = models.LookupInvalid
		result.Message = "Please enter a CIK of up to 10 digits."
		return result
	}
	result.CIK = cik
	result.FallbackURL = FallbackURL(cik)

	record, err := s.fetcher.FetchSubmission(ctx, cik)
	if err != nil {
		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
			result.Status = models.LookupNotFound
			result.Message = fmt.Sprintf("No registrant found for CIK %s.", cik)
		case errors.Is(err, ErrMalformedResponse):
			s.logger.Warn("Malformed submission response", zap.String("cik", cik), zap.Error(err))
			result.Status = models.LookupMalformed
			result.Message = "The filings data for this registrant could not be read."
		default:
			s.logger.Error("Submission lookup failed", zap.String("cik", cik), zap.Error(err))
			result.Status = models.LookupUnavailable
			result.Message = "The filings service is unavailable right now."
		}
		return result
	}
	result.CompanyName = record.Name

	rows, err := record.FilingRows()
	if err != nil {
		s.logger.Warn("Malformed filings in submission", zap.String("cik", cik), zap.Error(err))
		result.Status = models.LookupMalformed
		result.Message = "The filings data for this registrant could not be read."
		return result
	}
	if len(rows) == 0 {
		result.Status = models.LookupNotFound
		result.Message = fmt.Sprintf("No S-1 filings found for %s.", displayName(record.Name))
		return result
	}

	SortByFilingDateDesc(rows)
	latest := rows[0]
	// The live API knows the registrant's identifier even if the record's own
	// cik field is missing.
	latest.CIK = cik

	result.Status = models.LookupFound
	result.Filing = &latest
	result.DocumentURL = DocumentURL(cik, latest.AccessionNumber, latest.PrimaryDocument)
	return result
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return parser.Unknown
	}
	return name
}
