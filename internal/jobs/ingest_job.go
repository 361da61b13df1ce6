package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cloo-solutions/wizvec/internal/domain"
)

// Ingester starts an ingestion run.
type Ingester interface {
	Ingest(ctx context.Context, categories []string) (*domain.UpsertReport, error)
}

// IngestJob re-ingests the configured snapshot on every tick.
type IngestJob struct {
	ingester   Ingester
	categories []string
	logger     *slog.Logger
}

// NewIngestJob creates an IngestJob. Empty categories means all.
func NewIngestJob(ingester Ingester, categories []string, logger *slog.Logger) *IngestJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestJob{
		ingester:   ingester,
		categories: categories,
		logger:     logger.With("component", "ingest-job"),
	}
}

// ProcessJobs runs one ingestion. A run that is still going is skipped.
// Batch failures are logged; only fatal errors are returned.
func (j *IngestJob) ProcessJobs(ctx context.Context) error {
	report, err := j.ingester.Ingest(ctx, j.categories)
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		j.logger.Info("previous ingestion still running, skipping tick")
		return nil
	case report != nil && report.Cancelled:
		j.logger.Warn("scheduled ingestion cancelled", "run_id", report.RunID, "summary", report.Summary())
		return nil
	case err != nil:
		return err
	}

	if report.FullSuccess() {
		j.logger.Info("scheduled ingestion finished", "run_id", report.RunID, "summary", report.Summary())
	} else {
		j.logger.Warn("scheduled ingestion finished with failures", "run_id", report.RunID, "summary", report.Summary())
	}
	return nil
}
