package summary

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
)

// maxDocumentBytes bounds the download of a primary document.
const maxDocumentBytes = 8 << 20

var (
	ErrDisabled  = errors.New("summaries are not configured")
	ErrNoFiling  = errors.New("no S-1 filing to summarize")
	ErrEmptyText = errors.New("filing document has no text")
)

// LookupError carries a non-found lookup result to the caller.
type LookupError struct {
	Result models.LookupResult
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s: %s", e.Result.CIK, e.Result.Status)
}

func (e *LookupError) Unwrap() error {
	return ErrNoFiling
}

type Summarizer interface {
	Summarize(ctx context.Context, companyName, text string) (string, error)
}

type Lookuper interface {
	Lookup(ctx context.Context, input string) models.LookupResult
}

type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// Service summarizes a registrant's most recent S-1.
type Service struct {
	lookup     Lookuper
	documents  DocumentFetcher
	summarizer Summarizer
	logger     *zap.Logger
}

// NewService builds a Service. A nil summarizer makes every call return
// ErrDisabled.
func NewService(lookup Lookuper, documents DocumentFetcher, summarizer Summarizer, logger *zap.Logger) *Service {
	return &Service{lookup: lookup, documents: documents, summarizer: summarizer, logger: logger}
}

func (s *Service) Enabled() bool {
	return s.summarizer != nil
}

func (s *Service) Summarize(ctx context.Context, cik string) (*models.Summary, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	result := s.lookup.Lookup(ctx, cik)
	if !result.Found() {
		return nil, &LookupError{Result: result}
	}

	body, err := s.documents.FetchDocument(ctx, result.DocumentURL, maxDocumentBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", result.DocumentURL, err)
	}

	text, err := ExtractText(bytes.NewReader(body), MaxTextLength)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", result.DocumentURL, err)
	}
	if text == "" {
		return nil, ErrEmptyText
	}

	s.logger.Info("Summarizing filing",
		zap.String("cik", result.CIK),
		zap.String("url", result.DocumentURL),
		zap.Int("chars", len(text)))

	out, err := s.summarizer.Summarize(ctx, result.CompanyName, text)
	if err != nil {
		return nil, err
	}

	return &models.Summary{
		CIK:         result.CIK,
		CompanyName: result.CompanyName,
		FormType:    result.Filing.FormType,
		FilingDate:  result.Filing.FilingDate,
		DocumentURL: result.DocumentURL,
		Text:        out,
	}, nil
}
