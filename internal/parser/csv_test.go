package parser

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
)

func TestCSVRoundTrip(t *testing.T) {
	rows := []models.FilingRow{
		{CIK: "0000320193", CompanyName: "Apple Inc.", FilingDate: "2019-05-01", FormType: "S-1", AccessionNumber: "0000320193-19-000002", PrimaryDocument: "s1.htm"},
		{CIK: "0001234567", CompanyName: `Quotes "and", commas Ltd`, FilingDate: "2024-11-30", FormType: "S-1/A", AccessionNumber: "0001234567-24-000010", PrimaryDocument: "forms1a.htm"},
	}

	var buf bytes.Buffer
	writer := NewCSVWriter(&buf)
	for _, row := range rows {
		require.NoError(t, writer.Write(row))
	}
	require.NoError(t, writer.Flush())
	assert.Equal(t, 2, writer.Rows())
	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(CSVHeader, ",")+"\n"))

	var parsed []models.FilingRow
	count, err := ReadCSV(&buf, func(row models.FilingRow) error {
		parsed = append(parsed, row)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, rows, parsed)
}

func TestCSVWriter_EmptyOutputHasHeader(t *testing.T) {
	var buf bytes.Buffer
	writer := NewCSVWriter(&buf)
	require.NoError(t, writer.Flush())

	assert.Equal(t, strings.Join(CSVHeader, ",")+"\n", buf.String())
}

func TestReadCSV(t *testing.T) {
	noop := func(models.FilingRow) error { return nil }

	t.Run("Expect: header with spaces after commas is accepted", func(t *testing.T) {
		input := "cik, company_name, filing_date, form_type, accession_number, primary_document\n" +
			"0000000001, Example Corp, 2020-01-01, S-1, 0000000001-20-000001, s1.htm\n"

		var got models.FilingRow
		count, err := ReadCSV(strings.NewReader(input), func(row models.FilingRow) error {
			got = row
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, "Example Corp", got.CompanyName)
		assert.Equal(t, "s1.htm", got.PrimaryDocument)
	})

	t.Run("Expect: error on an empty file", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""), noop)
		assert.ErrorIs(t, err, ErrInvalidHeader)
	})

	t.Run("Expect: error on a wrong header", func(t *testing.T) {
		input := "cik,name,filing_date,form_type,accession_number,primary_document\n"
		_, err := ReadCSV(strings.NewReader(input), noop)
		assert.ErrorIs(t, err, ErrInvalidHeader)
	})

	t.Run("Expect: error on a row with the wrong field count", func(t *testing.T) {
		input := strings.Join(CSVHeader, ",") + "\n0000000001,Example,2020-01-01,S-1\n"
		_, err := ReadCSV(strings.NewReader(input), noop)
		assert.Error(t, err)
	})

	t.Run("Expect: callback error stops the read", func(t *testing.T) {
		input := strings.Join(CSVHeader, ",") + "\n1,a,b,c,d,e\n2,a,b,c,d,e\n"
		stop := errors.New("stop")

		count, err := ReadCSV(strings.NewReader(input), func(models.FilingRow) error { return stop })
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 0, count)
	})
}
