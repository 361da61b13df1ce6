package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPipelineRunner mocks the ingestion pipeline
type MockPipelineRunner struct {
	mock.Mock
}

func (m *MockPipelineRunner) Run(ctx context.Context, location string, categoryFilter []string) (*domain.UpsertReport, error) {
	args := m.Called(ctx, location, categoryFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UpsertReport), args.Error(1)
}

func TestIngestService_LastReport_NoRunYet(t *testing.T) {
	svc := NewIngestService(new(MockPipelineRunner), "snapshot.json")

	report, err := svc.LastReport()

	assert.Nil(t, report)
	assert.True(t, errors.Is(err, domain.ErrNoRunYet))
}

func TestIngestService_Ingest_StoresReport(t *testing.T) {
	runner := new(MockPipelineRunner)
	want := &domain.UpsertReport{RunID: "run-1", ChunksGenerated: 3, ChunksUpserted: 3}
	runner.On("Run", mock.Anything, "snapshot.json", []string{"Quests"}).Return(want, nil)
	svc := NewIngestService(runner, "snapshot.json")

	got, err := svc.Ingest(context.Background(), []string{"Quests"})

	require.NoError(t, err)
	assert.Same(t, want, got)
	last, err := svc.LastReport()
	require.NoError(t, err)
	assert.Same(t, want, last)
	runner.AssertExpectations(t)
}

func TestIngestService_Ingest_FatalErrorKeepsPreviousReport(t *testing.T) {
	runner := new(MockPipelineRunner)
	first := &domain.UpsertReport{RunID: "run-1"}
	runner.On("Run", mock.Anything, "snapshot.json", []string(nil)).Return(first, nil).Once()
	runner.On("Run", mock.Anything, "snapshot.json", []string(nil)).
		Return(nil, domain.SourceUnavailable("snapshot.json", errors.New("gone"))).Once()
	svc := NewIngestService(runner, "snapshot.json")

	_, err := svc.Ingest(context.Background(), nil)
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), nil)
	require.Error(t, err)

	last, err := svc.LastReport()
	require.NoError(t, err)
	assert.Same(t, first, last)
}

func TestIngestService_Ingest_CancelledReportIsKept(t *testing.T) {
	runner := new(MockPipelineRunner)
	partial := &domain.UpsertReport{RunID: "run-2", Cancelled: true}
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(partial, context.Canceled)
	svc := NewIngestService(runner, "snapshot.json")

	got, err := svc.Ingest(context.Background(), nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Same(t, partial, got)
	last, _ := svc.LastReport()
	assert.Same(t, partial, last)
}

func TestIngestService_Ingest_RejectsConcurrentRun(t *testing.T) {
	runner := new(MockPipelineRunner)
	started := make(chan struct{})
	release := make(chan struct{})
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&domain.UpsertReport{RunID: "run-1"}, nil).Once()
	svc := NewIngestService(runner, "snapshot.json")

	done := make(chan error, 1)
	go func() {
		_, err := svc.Ingest(context.Background(), nil)
		done <- err
	}()
	<-started

	report, err := svc.Ingest(context.Background(), nil)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, domain.ErrRunInProgress))

	close(release)
	require.NoError(t, <-done)
	runner.AssertNumberOfCalls(t, "Run", 1)
}
