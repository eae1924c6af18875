package parser

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
)

const appleSubmission = `{"cik": 320193, "name": "Apple Inc.", "filings":{"recent":{"form":["10-K","S-1","S-1/A"],"filingDate":["2020-01-01","2019-05-01","2019-06-01"],"accessionNumber":["0000320193-20-000001","0000320193-19-000002","0000320193-19-000003"]}}}`

func TestSubmissionRecord_FilingRows(t *testing.T) {
	t.Run("Expect: only allow-listed forms are kept, in record order", func(t *testing.T) {
		record, err := DecodeSubmission([]byte(appleSubmission))
		require.NoError(t, err)

		rows, err := record.FilingRows()
		require.NoError(t, err)

		expected := []models.FilingRow{
			{CIK: "0000320193", CompanyName: "Apple Inc.", FilingDate: "2019-05-01", FormType: "S-1", AccessionNumber: "0000320193-19-000002", PrimaryDocument: Unknown},
			{CIK: "0000320193", CompanyName: "Apple Inc.", FilingDate: "2019-06-01", FormType: "S-1/A", AccessionNumber: "0000320193-19-000003", PrimaryDocument: Unknown},
		}
		if diff := cmp.Diff(expected, rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Expect: one row per allow-listed index for aligned sequences", func(t *testing.T) {
		forms := []string{"S-1", "10-Q", "S-1/A", "8-K", "S-1", "S-1/AA", "s-1"}
		for n := 0; n <= len(forms); n++ {
			recent := &RecentFilings{
				Form:            forms[:n],
				FilingDate:      make([]string, n),
				AccessionNumber: make([]string, n),
				PrimaryDocument: make([]string, n),
			}
			expected := 0
			for i := 0; i < n; i++ {
				recent.FilingDate[i] = fmt.Sprintf("2021-01-%02d", i+1)
				recent.AccessionNumber[i] = fmt.Sprintf("0000000001-21-%06d", i)
				recent.PrimaryDocument[i] = fmt.Sprintf("doc%d.htm", i)
				if IsAllowedForm(forms[i]) {
					expected++
				}
			}
			record := &SubmissionRecord{CIK: "1", Name: "Example"}
			record.Filings.Recent = recent

			rows, err := record.FilingRows()
			require.NoError(t, err)
			assert.Len(t, rows, expected, "prefix length %d", n)
			for _, row := range rows {
				assert.True(t, IsAllowedForm(row.FormType))
			}
		}
	})

	t.Run("Expect: misaligned sequences yield no rows and a named error", func(t *testing.T) {
		cases := map[string]*RecentFilings{
			"short dates":     {Form: []string{"S-1", "S-1"}, FilingDate: []string{"2020-01-01"}, AccessionNumber: []string{"a", "b"}},
			"long accessions": {Form: []string{"S-1"}, FilingDate: []string{"2020-01-01"}, AccessionNumber: []string{"a", "b"}},
			"short documents": {Form: []string{"S-1"}, FilingDate: []string{"2020-01-01"}, AccessionNumber: []string{"a"}, PrimaryDocument: []string{}},
			"forms missing":   {FilingDate: []string{"2020-01-01"}, AccessionNumber: []string{"a"}},
		}
		for name, recent := range cases {
			t.Run(name, func(t *testing.T) {
				record := &SubmissionRecord{CIK: "1", Name: "Example"}
				record.Filings.Recent = recent

				rows, err := record.FilingRows()
				assert.ErrorIs(t, err, ErrMisalignedFilings)
				assert.Empty(t, rows)
			})
		}
	})

	t.Run("Expect: missing recent filings is a named error", func(t *testing.T) {
		record, err := DecodeSubmission([]byte(`{"cik":"0000000001","name":"Shell Co"}`))
		require.NoError(t, err)

		_, err = record.FilingRows()
		assert.ErrorIs(t, err, ErrMissingFilings)
	})

	t.Run("Expect: missing name and document become Unknown", func(t *testing.T) {
		record, err := DecodeSubmission([]byte(`{"cik":"42","filings":{"recent":{"form":["S-1"],"filingDate":["2022-02-02"],"accessionNumber":["0000000042-22-000001"],"primaryDocument":[""]}}}`))
		require.NoError(t, err)

		rows, err := record.FilingRows()
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "0000000042", rows[0].CIK)
		assert.Equal(t, Unknown, rows[0].CompanyName)
		assert.Equal(t, Unknown, rows[0].PrimaryDocument)
	})
}

func TestDecodeSubmission(t *testing.T) {
	t.Run("Expect: numeric and string identifiers decode to the same value", func(t *testing.T) {
		fromNumber, err := DecodeSubmission([]byte(`{"cik": 320193}`))
		require.NoError(t, err)
		fromString, err := DecodeSubmission([]byte(`{"cik": "0000320193"}`))
		require.NoError(t, err)

		assert.Equal(t, NormalizeCIK(string(fromNumber.CIK)), NormalizeCIK(string(fromString.CIK)))
	})

	t.Run("Expect: null identifier decodes as empty", func(t *testing.T) {
		record, err := DecodeSubmission([]byte(`{"cik": null}`))
		require.NoError(t, err)
		assert.Equal(t, FlexibleID(""), record.CIK)
	})

	t.Run("Expect: error for invalid JSON", func(t *testing.T) {
		_, err := DecodeSubmission([]byte(`{"cik": `))
		assert.Error(t, err)
	})

	t.Run("Expect: error when a sequence has the wrong type", func(t *testing.T) {
		_, err := DecodeSubmission([]byte(`{"filings":{"recent":{"form":"S-1"}}}`))
		assert.Error(t, err)
	})
}
