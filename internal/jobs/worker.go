package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobProcessor is one unit of scheduled work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Option configures a Worker.
type Option func(*Worker)

// WithImmediateRun makes the worker process once before the first tick.
func WithImmediateRun() Option {
	return func(w *Worker) { w.immediate = true }
}

// Worker calls its processor on a fixed interval until stopped. Cycles never
// overlap: a slow cycle delays the next tick rather than racing it.
type Worker struct {
	processor JobProcessor
	interval  time.Duration
	immediate bool
	logger    *slog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewWorker(processor JobProcessor, interval time.Duration, logger *slog.Logger, opts ...Option) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		processor: processor,
		interval:  interval,
		logger:    logger.With("component", "worker"),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start blocks until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	w.logger.Info("worker started", "interval", w.interval, "immediate", w.immediate)

	if w.immediate {
		w.cycle(ctx)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			w.logger.Info("worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}

func (w *Worker) cycle(ctx context.Context) {
	start := time.Now()
	if err := w.processor.ProcessJobs(ctx); err != nil {
		w.logger.Error("cycle failed", "error", err, "duration", time.Since(start))
		return
	}
	w.logger.Debug("cycle finished", "duration", time.Since(start))
}

// Stop signals the loop and waits for the current cycle to finish. It is safe
// to call more than once, but only after Start has been called.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
}
