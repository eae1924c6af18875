package sec

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
)

type MockSubmissionFetcher struct {
	mock.Mock
}

func (m *MockSubmissionFetcher) FetchSubmission(ctx context.Context, cik string) (*parser.SubmissionRecord, error) {
	args := m.Called(ctx, cik)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*parser.SubmissionRecord), args.Error(1)
}

func decodeRecord(t *testing.T, body string) *parser.SubmissionRecord {
	t.Helper()
	record, err := parser.DecodeSubmission([]byte(body))
	require.NoError(t, err)
	return record
}

func TestLookupService_Lookup(t *testing.T) {
	ctx := context.Background()

	t.Run("Expect: most recent S-1 family filing with a document URL", func(t *testing.T) {
		fetcher := new(MockSubmissionFetcher)
		record := decodeRecord(t, `{"cik": 320193, "name": "Apple Inc.", "filings":{"recent":{"form":["10-K","S-1","S-1/A"],"filingDate":["2020-01-01","2019-05-01","2019-06-01"],"accessionNumber":["0000320193-20-000001","0000320193-19-000002","0000320193-19-000003"],"primaryDocument":["k.htm","s1.htm","s1a.htm"]}}}`)
		fetcher.On("FetchSubmission", ctx, "0000320193").Return(record, nil).Once()

		result := NewLookupService(fetcher, zap.NewNop()).Lookup(ctx, "320193")

		require.True(t, result.Found())
		assert.Equal(t, "0000320193", result.CIK)
		assert.Equal(t, "Apple Inc.", result.CompanyName)
		assert.Equal(t, "S-1/A", result.Filing.FormType)
		assert.Equal(t, "2019-06-01", result.Filing.FilingDate)
		assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019319000003/s1a.htm", result.DocumentURL)
		assert.Contains(t, result.FallbackURL, "CIK=0000320193")
		fetcher.AssertExpectations(t)
	})

	t.Run("Expect: invalid identifier is rejected without calling the API", func(t *testing.T) {
		fetcher := new(MockSubmissionFetcher)

		result := NewLookupService(fetcher, zap.NewNop()).Lookup(ctx, "apple")

		assert.Equal(t, models.LookupInvalid, result.Status)
		assert.NotEmpty(t, result.Message)
		assert.NotEmpty(t, result.FallbackURL)
		fetcher.AssertNotCalled(t, "FetchSubmission", mock.Anything, mock.Anything)
	})

	t.Run("Expect: 404 is reported as not found", func(t *testing.T) {
		fetcher := new(MockSubmissionFetcher)
		fetcher.On("FetchSubmission", ctx, "0000000001").Return(nil, &StatusError{URL: "x", StatusCode: http.StatusNotFound}).Once()

		result := NewLookupService(fetcher, zap.NewNop()).Lookup(ctx, "1")

		assert.Equal(t, models.LookupNotFound, result.Status)
	})

	t.Run("Expect: registrant without S-1 filings is not found", func(t *testing.T) {
		fetcher := new(MockSubmissionFetcher)
		record := decodeRecord(t, `{"cik":"1","name":"Quiet Co","filings":{"recent":{"form":["10-K"],"filingDate":["2020-01-01"],"accessionNumber":["a"]}}}`)
		fetcher.On("FetchSubmission", ctx, "0000000001").Return(record, nil).Once()

		result := NewLookupService(fetcher, zap.NewNop()).Lookup(ctx, "1")

		assert.Equal(t, models.LookupNotFound, result.Status)
		assert.Contains(t, result.Message, "Quiet Co")
		assert.Nil(t, result.Filing)
	})

	t.Run("Expect: misaligned sequences are reported as malformed", func(t *testing.T) {
		fetcher := new(MockSubmissionFetcher)
		record := decodeRecord(t, `{"cik":"1","name":"Broken","filings":{"recent":{"form":["S-1","S-1"],"filingDate":["2020-01-01"],"accessionNumber":["a","b"]}}}`)
		fetcher.On("FetchSubmission", ctx, "0000000001").Return(record, nil).Once()

		result := NewLookupService(fetcher, zap.NewNop()).Lookup(ctx, "1")

		assert.Equal(t, models.LookupMalformed, result.Status)
	})

	t.Run("Expect: undecodable response is reported as malformed", func(t *testing.T) {
		fetcher := new(MockSubmissionFetcher)
		fetcher.On("FetchSubmission", ctx, "0000000001").Return(nil, ErrMalformedResponse).Once()

		result := NewLookupService(fetcher, zap.NewNop()).Lookup(ctx, "1")

		assert.Equal(t, models.LookupMalformed, result.Status)
	})

	t.Run("Expect: transport failure is reported as unavailable", func(t *testing.T) {
		fetcher := new(MockSubmissionFetcher)
		fetcher.On("FetchSubmission", ctx, "0000000001").Return(nil, errors.New("connection refused")).Once()

		result := NewLookupService(fetcher, zap.NewNop()).Lookup(ctx, "1")

		assert.Equal(t, models.LookupUnavailable, result.Status)
		assert.NotEmpty(t, result.FallbackURL)
	})
}

func TestSortByFilingDateDesc(t *testing.T) {
	rows := []models.FilingRow{
		{FilingDate: "2019-05-01", FormType: "S-1"},
		{FilingDate: "2019-06-01", FormType: "S-1/A"},
		{FilingDate: "2019-05-01", FormType: "S-1/A"},
	}

	SortByFilingDateDesc(rows)

	assert.Equal(t, "2019-06-01", rows[0].FilingDate)
	assert.Equal(t, "S-1", rows[1].FormType, "equal dates keep their original order")
	assert.Equal(t, "S-1/A", rows[2].FormType)
}

func TestDocumentURL(t *testing.T) {
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/1018724/000089102097000434/s1a.txt",
		DocumentURL("0001018724", "0000891020-97-000434", "s1a.txt"))
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/0/000000000021000001/a.htm",
		DocumentURL("0000000000", "0000000000-21-000001", "a.htm"))
}

func TestFallbackURL(t *testing.T) {
	t.Run("Expect: padded identifier in the browse query", func(t *testing.T) {
		assert.Equal(t,
			"https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=0000320193&type=S-1&dateb=&owner=include&count=40",
			FallbackURL("0000320193"))
	})

	t.Run("Expect: raw input cannot add query parameters or a fragment", func(t *testing.T) {
		link := FallbackURL("1&type=10-K#x")

		parsed, err := url.Parse(link)
		require.NoError(t, err)
		assert.Empty(t, parsed.Fragment)
		assert.Equal(t, "1&type=10-K#x", parsed.Query().Get("CIK"))
		assert.Equal(t, []string{"S-1"}, parsed.Query()["type"])
	})
}

func TestLookupService_InvalidInputFallback(t *testing.T) {
	fetcher := new(MockSubmissionFetcher)
	service := NewLookupService(fetcher, zap.NewNop())

	result := service.Lookup(context.Background(), "1&type=10-K#x")

	assert.Equal(t, models.LookupInvalid, result.Status)
	assert.NotContains(t, result.FallbackURL, "#")
	assert.Contains(t, result.FallbackURL, "CIK=1%26type%3D10-K%23x")
	fetcher.AssertNotCalled(t, "FetchSubmission", mock.Anything, mock.Anything)
}

func TestValidateCIK(t *testing.T) {
	cik, err := ValidateCIK(" 320193 ")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", cik)

	_, err = ValidateCIK("12345678901")
	assert.ErrorIs(t, err, ErrInvalidCIK)
}
