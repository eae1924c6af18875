package ingestion

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ThiagoRGoveia/s1-filings.git/internal/database"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/models"
	"github.com/ThiagoRGoveia/s1-filings.git/internal/parser"
)

// BatchWorker streams an interchange CSV through a parser goroutine into a
// single DB worker that inserts fixed-size batches. One DB worker keeps the
// rows in file order.
type BatchWorker struct {
	dbManager database.DBManager
	batchSize int
	logger    *zap.Logger
}

func NewBatchWorker(dbManager database.DBManager, batchSize int, logger *zap.Logger) *BatchWorker {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &BatchWorker{dbManager: dbManager, batchSize: batchSize, logger: logger}
}

// Run returns the number of rows inserted. Full batches are committed as
// they fill and stay in the table if a later row fails; the final partial
// batch is only inserted when the whole file parsed.
func (w *BatchWorker) Run(ctx context.Context, r io.Reader) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan models.FilingRow, w.batchSize)
	var parserWg sync.WaitGroup
	var parseErr error

	parserWg.Add(1)
	go func() {
		defer parserWg.Done()
		defer close(results)
		_, parseErr = parser.ReadCSV(r, func(row models.FilingRow) error {
			select {
			case results <- row:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	inserted, pending, dbErr := w.dbWorker(ctx, results)
	if dbErr != nil {
		// Unblocks the parser if it is waiting on a full channel.
		cancel()
	}
	parserWg.Wait()

	if parseErr != nil && !errors.Is(parseErr, context.Canceled) {
		return inserted, parseErr
	}
	if dbErr != nil {
		return inserted, dbErr
	}
	if parseErr != nil {
		return inserted, parseErr
	}

	// Insert any remaining rows
	if len(pending) > 0 {
		w.logger.Debug("Inserting final batch", zap.Int("rows", len(pending)))
		if err := w.dbManager.InsertSubmissionsBatch(ctx, pending); err != nil {
			return inserted, err
		}
		inserted += int64(len(pending))
	}
	return inserted, nil
}

// dbWorker inserts every full batch read from results and returns the rows
// left over once the channel closes.
func (w *BatchWorker) dbWorker(ctx context.Context, results <-chan models.FilingRow) (int64, []models.FilingRow, error) {
	var inserted int64
	rows := make([]models.FilingRow, 0, w.batchSize)

	for row := range results {
		rows = append(rows, row)
		if len(rows) < w.batchSize {
			continue
		}
		w.logger.Debug("Inserting batch", zap.Int("rows", len(rows)))
		if err := w.dbManager.InsertSubmissionsBatch(ctx, rows); err != nil {
			return inserted, nil, err
		}
		inserted += int64(len(rows))
		rows = rows[:0]
	}
	return inserted, rows, nil
}
