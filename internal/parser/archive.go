package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
)

const (
	memberSuffix = ".json"
	// maxReportedErrors caps the skip reasons kept per run; a run with more
	// than this is probably reading the wrong archive.
	maxReportedErrors = 100
)

// FilterReport summarizes one pass over an archive.
type FilterReport struct {
	Members int               `json:"members"`
	Matched int               `json:"matched"`
	Skipped int               `json:"skipped"`
	Errors  []models.AppError `json:"errors,omitempty"`
}

func (r *FilterReport) skip(appErr models.AppError) {
	r.Skipped++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, appErr)
	}
}

// ArchiveFilter walks a submissions archive and keeps allow-listed filings.
type ArchiveFilter struct {
	logger *zap.Logger
}

func NewArchiveFilter(logger *zap.Logger) *ArchiveFilter {
	return &ArchiveFilter{logger: logger}
}

// Filter calls emit for every allow-listed filing of every registrant member,
// in archive order. A member that cannot be decoded, or whose filing
// sequences are misaligned, is logged and skipped. An archive that cannot be
// opened and any emit error abort the pass.
func (f *ArchiveFilter) Filter(ctx context.Context, zipPath string, emit func(models.FilingRow) error) (*FilterReport, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer archive.Close()

	report := &FilterReport{}
	f.logger.Info("Filtering archive", zap.String("path", zipPath), zap.Int("entries", len(archive.File)))

	for _, member := range archive.File {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if member.FileInfo().IsDir() || !strings.HasSuffix(member.Name, memberSuffix) {
			continue
		}
		report.Members++

		record, err := readMember(member)
		if err != nil {
			f.logger.Warn("Skipping archive member", zap.String("member", member.Name), zap.Error(err))
			report.skip(models.AppError{Member: member.Name, Message: "Failed to decode submission", Err: err})
			continue
		}

		rows, err := record.FilingRows()
		if err != nil {
			f.logger.Warn("Skipping archive member", zap.String("member", member.Name), zap.Error(err))
			report.skip(models.AppError{Member: member.Name, Message: "Malformed filings", Err: err})
			continue
		}

		for _, row := range rows {
			if err := emit(row); err != nil {
				return report, fmt.Errorf("failed to emit row from %s: %w", member.Name, err)
			}
			report.Matched++
		}
	}

	f.logger.Info("Archive filtered",
		zap.Int("members", report.Members),
		zap.Int("matched", report.Matched),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// FilterToCSV writes the filtered rows of zipPath to csvPath in the
// interchange format. The CSV is written beside csvPath and renamed into place
// only when the pass succeeds.
func (f *ArchiveFilter) FilterToCSV(ctx context.Context, zipPath, csvPath string) (*FilterReport, error) {
	tmp, err := os.CreateTemp(filepath.Dir(csvPath), filepath.Base(csvPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file for %s: %w", csvPath, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	writer := NewCSVWriter(tmp)
	report, err := f.Filter(ctx, zipPath, writer.Write)
	if err != nil {
		return report, err
	}
	if err := writer.Flush(); err != nil {
		return report, fmt.Errorf("failed to flush CSV %s: %w", csvPath, err)
	}
	if err := tmp.Close(); err != nil {
		return report, fmt.Errorf("failed to close CSV %s: %w", csvPath, err)
	}
	if err := os.Rename(tmp.Name(), csvPath); err != nil {
		return report, fmt.Errorf("failed to move CSV into place at %s: %w", csvPath, err)
	}

	f.logger.Info("Filtered data saved", zap.String("path", csvPath), zap.Int("rows", writer.Rows()))
	return report, nil
}

func readMember(member *zip.File) (*SubmissionRecord, error) {
	rc, err := member.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return DecodeSubmission(data)
}
