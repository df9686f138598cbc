package bylawsearch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/civicgrid/bylawsearch/vector"
)

// indexWriter pushes one document's records into the vector index in
// bounded batches with retry. Batches that succeeded before a failure are
// not rolled back: ingestion is at-least-once and a failed document may be
// partially indexed until it is re-ingested. Operators see this in the logs,
// not hidden behind a cleanup.
type indexWriter struct {
	index     vector.Index
	batchSize int
	retry     RetryPolicy
	timeout   timeoutFunc
	log       *zap.Logger
}

type timeoutFunc func(ctx context.Context) (context.Context, context.CancelFunc)

// write upserts records batch by batch and returns the number of batches
// written. On retry exhaustion the error carries the failing batch index.
func (w *indexWriter) write(ctx context.Context, filename string, records []vector.Record) (int, error) {
	log := w.log.With(
		zap.String("action", "index_write"),
		zap.String("filename", filename),
	)

	batches := 0
	for start := 0; start < len(records); start += w.batchSize {
		end := start + w.batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := records[start:end]

		err := w.retry.Do(ctx, func() error {
			callCtx, cancel := w.timeout(ctx)
			defer cancel()

			return w.index.Upsert(callCtx, batch)
		})

		if err != nil {
			log.Error(err.Error(),
				zap.Int("batch", batches),
				zap.Int("batches_written", batches),
			)

			return batches, fmt.Errorf("%w: batch %d: %v", ErrIndexWriteFailed, batches, err)
		}

		batches++
	}

	return batches, nil
}
