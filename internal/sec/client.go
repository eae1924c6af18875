package sec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
)

// chunkSize is the buffer used when streaming the archive to disk.
const chunkSize = 8192

const (
	archiveResponseHeaderTimeout = time.Minute
	lookupRequestTimeout         = 2 * time.Minute
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected HTTP status")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s: %d %s", e.URL, ErrUnexpectedStatus, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Client talks to the filings provider. Every request carries the configured
// User-Agent, which the provider's access policy requires.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	submissionsURL string
	logger         *zap.Logger
}

// NewClient builds a Client. submissionsURL is a format string taking the
// zero-padded identifier, e.g. "https://data.sec.gov/submissions/CIK%s.json".
// A nil httpClient means http.DefaultClient.
func NewClient(httpClient *http.Client, userAgent, submissionsURL string, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:     httpClient,
		userAgent:      userAgent,
		submissionsURL: submissionsURL,
		logger:         logger,
	}
}

// NewArchiveHTTPClient returns the client for bulk archive downloads. It has
// no overall Timeout, which would also bound reading a multi-gigabyte body;
// only dialing and waiting for response headers are bounded.
func NewArchiveHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = archiveResponseHeaderTimeout
	return &http.Client{Transport: transport}
}

// NewLookupHTTPClient returns the client for single-registrant lookups and
// filing documents, where a whole request is bounded.
func NewLookupHTTPClient() *http.Client {
	return &http.Client{Timeout: lookupRequestTimeout}
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// DownloadArchive streams url into dst and returns the number of bytes
// written. The body goes to a temporary file first so a failed download never
// replaces an archive from a previous run.
func (c *Client) DownloadArchive(ctx context.Context, url, dst string) (int64, error) {
	c.logger.Info("Downloading archive", zap.String("url", url), zap.String("path", dst))

	resp, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create download file for %s: %w", dst, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	written, err := io.CopyBuffer(tmp, resp.Body, make([]byte, chunkSize))
	if err != nil {
		return written, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("failed to close download file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return written, fmt.Errorf("failed to move archive into place at %s: %w", dst, err)
	}

	c.logger.Info("Archive downloaded", zap.String("path", dst), zap.Int64("bytes", written))
	return written, nil
}

// FetchSubmission fetches the live submission document of one registrant.
// cik must already be zero-padded.
func (c *Client) FetchSubmission(ctx context.Context, cik string) (*parser.SubmissionRecord, error) {
	url := fmt.Sprintf(c.submissionsURL, cik)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	record, err := parser.DecodeSubmission(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return record, nil
}

// FetchDocument returns at most maxBytes of a filing document.
func (c *Client) FetchDocument(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return data, nil
}
