package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/cloo-solutions/wizvec/internal/telemetry"
)

const (
	// DefaultBatchSize is the number of chunks embedded and written together.
	DefaultBatchSize = 50
	// DefaultBackoff is the pause after a failed batch.
	DefaultBackoff = 2 * time.Second
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration)

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// BatchUpserter embeds chunks and writes them to a ChunkStore one batch at a
// time. A failed batch is recorded and the next batch runs after a fixed backoff.
type BatchUpserter struct {
	client   EmbeddingClient
	store    ChunkStore
	backoff  time.Duration
	sleep    Sleeper
	observer ProgressObserver
	logger   *slog.Logger
}

// NewBatchUpserter creates a BatchUpserter. A non-positive backoff disables waiting.
func NewBatchUpserter(client EmbeddingClient, store ChunkStore, backoff time.Duration, logger *slog.Logger) *BatchUpserter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchUpserter{
		client:   client,
		store:    store,
		backoff:  backoff,
		sleep:    sleepContext,
		observer: NopObserver{},
		logger:   logger,
	}
}

// WithSleeper replaces the backoff wait, mainly for tests.
func (u *BatchUpserter) WithSleeper(s Sleeper) *BatchUpserter {
	u.sleep = s
	return u
}

// WithObserver sets the progress observer.
func (u *BatchUpserter) WithObserver(o ProgressObserver) *BatchUpserter {
	if o == nil {
		o = NopObserver{}
	}
	u.observer = o
	return u
}

// Partition splits chunks into consecutive batches of at most size chunks.
// Batches share the backing array of a copy of chunks, never the input.
func Partition(chunks []domain.KnowledgeChunk, size int) []domain.Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	owned := make([]domain.KnowledgeChunk, len(chunks))
	copy(owned, chunks)

	batches := make([]domain.Batch, 0, (len(owned)+size-1)/size)
	for start := 0; start < len(owned); start += size {
		end := min(start+size, len(owned))
		batches = append(batches, domain.Batch{
			Index:  len(batches),
			Start:  start,
			End:    end,
			Chunks: owned[start:end:end],
		})
	}
	return batches
}

// UpsertAll embeds and writes chunks in batches of batchSize and reports the
// outcome. It never returns an error: batch failures are part of the report.
// Cancellation of ctx is observed between batches only.
func (u *BatchUpserter) UpsertAll(ctx context.Context, chunks []domain.KnowledgeChunk, batchSize int) *domain.UpsertReport {
	report := domain.NewUpsertReport("", time.Now().UTC())
	report.ChunksGenerated = len(chunks)
	u.upsertInto(ctx, report, chunks, batchSize)
	report.FinishedAt = time.Now().UTC()
	return report
}

func (u *BatchUpserter) upsertInto(ctx context.Context, report *domain.UpsertReport, chunks []domain.KnowledgeChunk, batchSize int) {
	batches := Partition(chunks, batchSize)
	report.BatchesTotal = len(batches)

	for i, b := range batches {
		if ctx.Err() != nil {
			report.Cancelled = true
			report.BatchesSkipped = len(batches) - i
			u.logger.Warn("ingestion cancelled",
				"run_id", report.RunID,
				"next_batch", i,
				"batches_skipped", report.BatchesSkipped,
			)
			return
		}

		err := u.processBatch(context.WithoutCancel(ctx), report.RunID, b)
		if err == nil {
			report.RecordSuccess(b)
			u.logger.Debug("batch upserted", "run_id", report.RunID, "batch", b.Index, "start", b.Start, "end", b.End)
			u.observer.OnBatchDone(i+1, len(batches), nil)
			continue
		}

		failure := domain.NewBatchFailure(b, err)
		report.RecordFailure(failure)
		u.logger.Error("batch failed",
			"run_id", report.RunID,
			"batch", b.Index,
			"start", b.Start,
			"end", b.End,
			"code", failure.Code,
			"error", err,
		)
		u.observer.OnBatchDone(i+1, len(batches), &failure)

		if i < len(batches)-1 {
			u.sleep(ctx, u.backoff)
		}
	}
}

func (u *BatchUpserter) processBatch(ctx context.Context, runID string, b domain.Batch) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "BatchUpserter.processBatch", telemetry.SpanAttributes{
		RunID:      runID,
		BatchIndex: b.Index,
		BatchSize:  b.Size(),
		Operation:  "upsert_batch",
	})
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.End()
	}()

	for i := range b.Chunks {
		if err := domain.ValidateChunk(&b.Chunks[i]); err != nil {
			return err
		}
	}

	if err := embedBatch(ctx, u.client, b.Chunks); err != nil {
		return err
	}

	if err := u.store.UpsertChunks(ctx, b.Chunks); err != nil {
		return asStoreError(err)
	}
	return nil
}
