package parser

import (
	"strings"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
)

const (
	CIKWidth = 10
	Unknown  = "Unknown"
)

// PadCIK left-pads a digit-only identifier to CIKWidth. It reports false for
// empty input, non-digits, or identifiers longer than CIKWidth.
func PadCIK(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > CIKWidth {
		return "", false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return strings.Repeat("0", CIKWidth-len(s)) + s, true
}

// NormalizeCIK never fails: identifiers that cannot be padded become Unknown.
func NormalizeCIK(raw string) string {
	if cik, ok := PadCIK(raw); ok {
		return cik
	}
	return Unknown
}

// NormalizeRow maps raw filing values into a FilingRow. Accession numbers are
// stored in their hyphenated form.
func NormalizeRow(cik, name, filingDate, form, accession, primaryDocument string) models.FilingRow {
	return models.FilingRow{
		CIK:             NormalizeCIK(cik),
		CompanyName:     orUnknown(name),
		FilingDate:      orUnknown(filingDate),
		FormType:        orUnknown(form),
		AccessionNumber: orUnknown(accession),
		PrimaryDocument: orUnknown(primaryDocument),
	}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return Unknown
	}
	return s
}
