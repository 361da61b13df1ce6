package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunStatus summarizes how an ingestion run ended.
type RunStatus string

const (
	RunStatusComplete  RunStatus = "complete"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusEmpty     RunStatus = "empty"
)

// Batch is a consecutive slice of a run's chunks. Start and End are a
// half-open range of positions in the run's chunk sequence.
type Batch struct {
	Index  int
	Start  int
	End    int
	Chunks []KnowledgeChunk
}

// Size returns the number of chunks in the batch.
func (b Batch) Size() int {
	return b.End - b.Start
}

// BatchFailure records one batch that could not be embedded or written.
type BatchFailure struct {
	Index   int    `json:"index"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBatchFailure builds a failure record for batch b from err.
func NewBatchFailure(b Batch, err error) BatchFailure {
	msg := err.Error()
	var de *DomainError
	if errors.As(err, &de) {
		if de.Err != nil {
			msg = de.Err.Error()
		} else {
			msg = de.Message
		}
	}
	return BatchFailure{
		Index:   b.Index,
		Start:   b.Start,
		End:     b.End,
		Code:    ErrorCode(err),
		Message: msg,
	}
}

// UpsertReport is the outcome of one ingestion run.
type UpsertReport struct {
	RunID            string         `json:"run_id"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	Categories       []string       `json:"categories"`
	ChunksGenerated  int            `json:"chunks_generated"`
	ChunksSubmitted  int            `json:"chunks_submitted"`
	ChunksUpserted   int            `json:"chunks_upserted"`
	BatchesTotal     int            `json:"batches_total"`
	BatchesSucceeded int            `json:"batches_succeeded"`
	FailedBatches    []BatchFailure `json:"failed_batches"`
	BatchesSkipped   int            `json:"batches_skipped"`
	Cancelled        bool           `json:"cancelled"`
}

// NewUpsertReport creates an empty report for a run.
func NewUpsertReport(runID string, startedAt time.Time) *UpsertReport {
	return &UpsertReport{
		RunID:         runID,
		StartedAt:     startedAt,
		FailedBatches: []BatchFailure{},
	}
}

// RecordSuccess accounts for a batch that was embedded and written.
func (r *UpsertReport) RecordSuccess(b Batch) {
	r.BatchesSucceeded++
	r.ChunksSubmitted += b.Size()
	r.ChunksUpserted += b.Size()
}

// RecordFailure accounts for a batch that failed.
func (r *UpsertReport) RecordFailure(f BatchFailure) {
	r.ChunksSubmitted += f.End - f.Start
	r.FailedBatches = append(r.FailedBatches, f)
}

// BatchesFailed returns the number of failed batches.
func (r *UpsertReport) BatchesFailed() int {
	return len(r.FailedBatches)
}

// FullSuccess is true when every batch was attempted and none failed.
func (r *UpsertReport) FullSuccess() bool {
	return !r.Cancelled && len(r.FailedBatches) == 0
}

// Status classifies the run outcome.
func (r *UpsertReport) Status() RunStatus {
	switch {
	case r.Cancelled:
		return RunStatusCancelled
	case r.BatchesTotal == 0:
		return RunStatusEmpty
	case len(r.FailedBatches) == 0:
		return RunStatusComplete
	case r.BatchesSucceeded == 0:
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

// Summary renders a one-line, human-readable description of the run.
func (r *UpsertReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d chunks upserted", r.ChunksUpserted, r.ChunksGenerated)

	if n := len(r.FailedBatches); n > 0 {
		noun := "batch"
		if n > 1 {
			noun = "batches"
		}
		parts := make([]string, 0, n)
		for _, f := range r.FailedBatches {
			parts = append(parts, fmt.Sprintf("(indices %d-%d): %s: %s", f.Start, f.End-1, f.Code, f.Message))
		}
		fmt.Fprintf(&b, ", %d %s failed %s", n, noun, strings.Join(parts, "; "))
	}

	if r.Cancelled {
		fmt.Fprintf(&b, ", cancelled with %d batches skipped", r.BatchesSkipped)
	}
	return b.String()
}
