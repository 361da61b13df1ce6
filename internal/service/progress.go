package service

import "github.com/cloo-solutions/wizvec/internal/domain"

// ProgressObserver receives cumulative progress of a pipeline run.
type ProgressObserver interface {
	// OnChunked is called once per selected category after chunking.
	OnChunked(category string, chunks int)
	// OnBatchDone is called after each batch; failure is nil on success.
	OnBatchDone(done, total int, failure *domain.BatchFailure)
	OnRunFinished(report *domain.UpsertReport)
}

// NopObserver ignores all progress.
type NopObserver struct{}

func (NopObserver) OnChunked(string, int) {}
func (NopObserver) OnBatchDone(int, int, *domain.BatchFailure) {}
func (NopObserver) OnRunFinished(*domain.UpsertReport) {}
