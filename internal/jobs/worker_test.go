package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) Ingest(ctx context.Context, categories []string) (*domain.UpsertReport, error) {
	args := m.Called(ctx, categories)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UpsertReport), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(errors.New("source unavailable"))

	worker := NewWorker(mockProcessor, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	// errors do not stop the loop
	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestIngestJob_ProcessJobs(t *testing.T) {
	partial := &domain.UpsertReport{
		RunID:           "run-2",
		ChunksGenerated: 4,
		ChunksUpserted:  2,
		FailedBatches:   []domain.BatchFailure{{Index: 1, Start: 2, End: 4, Code: domain.ErrCodeStoreWrite, Message: "conn reset"}},
	}

	tests := []struct {
		name    string
		report  *domain.UpsertReport
		err     error
		wantErr bool
	}{
		{"complete", &domain.UpsertReport{RunID: "run-1", ChunksGenerated: 2, ChunksUpserted: 2}, nil, false},
		{"partial", partial, nil, false},
		{"run in progress", nil, domain.ErrRunInProgress, false},
		{"cancelled", &domain.UpsertReport{RunID: "run-3", Cancelled: true}, context.Canceled, false},
		{"fatal", nil, domain.SourceUnavailable("extracted_spells.json", errors.New("missing")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingester := new(MockIngester)
			ingester.On("Ingest", mock.Anything, []string{"Quests"}).Return(tt.report, tt.err)

			err := NewIngestJob(ingester, []string{"Quests"}, nil).ProcessJobs(context.Background())

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsFatal(err))
			} else {
				assert.NoError(t, err)
			}
			ingester.AssertExpectations(t)
		})
	}
}

func TestWorker_RunsIngestJob(t *testing.T) {
	ingester := new(MockIngester)
	ingester.On("Ingest", mock.Anything, []string(nil)).Return(&domain.UpsertReport{RunID: "run-1"}, nil)

	worker := NewWorker(NewIngestJob(ingester, nil, nil), 50*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(130 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	ingester.AssertCalled(t, "Ingest", mock.Anything, []string(nil))
}

func TestWorker_ImmediateRun(t *testing.T) {
	processed := make(chan struct{}, 1)
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Run(func(mock.Arguments) {
		select {
		case processed <- struct{}{}:
		default:
		}
	}).Return(nil)

	// the interval is far longer than the test, so only the immediate run fires
	worker := NewWorker(mockProcessor, time.Hour, nil, WithImmediateRun())

	go worker.Start(context.Background())

	select {
	case <-processed:
	case <-time.After(time.Second):
		t.Fatal("worker did not run before its first tick")
	}

	worker.Stop()
	mockProcessor.AssertNumberOfCalls(t, "ProcessJobs", 1)
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	worker := NewWorker(mockProcessor, time.Hour, nil)

	go worker.Start(context.Background())

	assert.NotPanics(t, func() {
		worker.Stop()
		worker.Stop()
	})
	mockProcessor.AssertNotCalled(t, "ProcessJobs", mock.Anything)
}
