package service

import (
	"context"
	"sync"

	"github.com/cloo-solutions/wizvec/internal/domain"
)

// PipelineRunner runs one ingestion.
type PipelineRunner interface {
	Run(ctx context.Context, location string, categoryFilter []string) (*domain.UpsertReport, error)
}

// IngestService serializes runs against a fixed source location and keeps
// the last report. It backs the HTTP API and the scheduled worker.
type IngestService struct {
	runner   PipelineRunner
	location string

	runMu sync.Mutex

	mu   sync.RWMutex
	last *domain.UpsertReport
}

// NewIngestService creates an IngestService for location.
func NewIngestService(runner PipelineRunner, location string) *IngestService {
	return &IngestService{runner: runner, location: location}
}

// Ingest runs the pipeline unless a run is already in progress, in which case
// it returns RUN_IN_PROGRESS without waiting.
func (s *IngestService) Ingest(ctx context.Context, categories []string) (*domain.UpsertReport, error) {
	if !s.runMu.TryLock() {
		return nil, domain.ErrRunInProgress
	}
	defer s.runMu.Unlock()

	report, err := s.runner.Run(ctx, s.location, categories)
	if report != nil {
		s.mu.Lock()
		s.last = report
		s.mu.Unlock()
	}
	return report, err
}

// LastReport returns the report of the most recent run that produced one.
func (s *IngestService) LastReport() (*domain.UpsertReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, domain.ErrNoRunYet
	}
	return s.last, nil
}
