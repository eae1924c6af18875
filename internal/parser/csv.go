package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
)

// CSVHeader is the interchange header, in column order.
var CSVHeader = []string{"cik", "company_name", "filing_date", "form_type", "accession_number", "primary_document"}

var ErrInvalidHeader = errors.New("invalid CSV header")

// CSVWriter writes FilingRows in the interchange format. The header is written
// before the first row, or on Flush if no rows were written.
type CSVWriter struct {
	w           *csv.Writer
	wroteHeader bool
	rows        int
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) writeHeader() error {
	if c.wroteHeader {
		return nil
	}
	c.wroteHeader = true
	return c.w.Write(CSVHeader)
}

func (c *CSVWriter) Write(row models.FilingRow) error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	if err := c.w.Write(row.Fields()); err != nil {
		return err
	}
	c.rows++
	return nil
}

// Rows returns how many data rows were written.
func (c *CSVWriter) Rows() int {
	return c.rows
}

func (c *CSVWriter) Flush() error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

// ReadCSV reads interchange rows and calls fn for each one. Header names are
// compared after trimming spaces, so "cik, company_name, ..." is accepted.
// It returns the number of rows handed to fn.
func ReadCSV(r io.Reader, fn func(models.FilingRow) error) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(CSVHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return 0, fmt.Errorf("%w: file is empty", ErrInvalidHeader)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) != CSVHeader[i] {
			return 0, fmt.Errorf("%w: column %d is %q, expected %q", ErrInvalidHeader, i+1, name, CSVHeader[i])
		}
	}

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read CSV record: %w", err)
		}

		row := models.FilingRow{
			CIK:             strings.TrimSpace(record[0]),
			CompanyName:     strings.TrimSpace(record[1]),
			FilingDate:      strings.TrimSpace(record[2]),
			FormType:        strings.TrimSpace(record[3]),
			AccessionNumber: strings.TrimSpace(record[4]),
			PrimaryDocument: strings.TrimSpace(record[5]),
		}
		if err := fn(row); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}
