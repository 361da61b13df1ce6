// Package telemetry reports ingestion runs to Sentry as traces and errors.
// Every helper degrades to a no-op when Sentry was never initialized.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cloo-solutions/wizvec/internal/domain"
	"github.com/getsentry/sentry-go"
)

const serviceName = "wizvec"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// SampleRateFor returns the trace sample rate used for an environment.
func SampleRateFor(environment string) float64 {
	switch environment {
	case "", "development", "test":
		return 1.0
	default:
		return 0.1
	}
}

// Init initializes Sentry and returns a function that flushes pending events.
// An empty DSN disables reporting.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = SampleRateFor(cfg.Environment)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		BeforeSend:       dropCancelled,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			// children follow the parent's decision
			var emptySpanID sentry.SpanID
			if ctx.Span.ParentSpanID != emptySpanID {
				if ctx.Span.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}
			return cfg.TracesSampleRate
		}),
	})
	if err != nil {
		return func() {}, err
	}

	slog.Info("sentry initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// dropCancelled discards events for runs the operator interrupted.
func dropCancelled(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint != nil && hint.OriginalException != nil && errors.Is(hint.OriginalException, context.Canceled) {
		return nil
	}
	return event
}

// SpanAttributes are the tags and data recorded on pipeline spans. Batch
// fields are only recorded when BatchSize is set.
type SpanAttributes struct {
	RunID      string
	Category   string
	BatchIndex int
	BatchSize  int
	Operation  string
}

// Span wraps a sentry span; the zero value is usable.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

func (s *Span) SetTag(key, value string) {
	if s.inner != nil {
		s.inner.SetTag(key, value)
	}
}

func (s *Span) SetData(key string, value interface{}) {
	if s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError records err on the span and reports it, tagged with its domain
// error code.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = spanStatusFor(err)
	s.inner.SetTag("error_code", domain.ErrorCode(err))
	CaptureError(s.inner.Context(), err)
}

func spanStatusFor(err error) sentry.SpanStatus {
	switch domain.ErrorCode(err) {
	case domain.ErrCodeEmbeddingService, domain.ErrCodeSourceUnavailable:
		return sentry.SpanStatusUnavailable
	case domain.ErrCodeInvalidChunk, domain.ErrCodeValidation, domain.ErrCodeConfiguration:
		return sentry.SpanStatusInvalidArgument
	}
	if errors.Is(err, context.Canceled) {
		return sentry.SpanStatusCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sentry.SpanStatusDeadlineExceeded
	}
	return sentry.SpanStatusInternalError
}

// StartSpan starts a child of the span carried by ctx, or a transaction when
// there is none. The returned context derives from ctx, so detached contexts
// stay detached.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var options []sentry.SpanOption
	if sentry.SpanFromContext(ctx) == nil {
		options = append(options, sentry.WithTransactionName(name))
	}

	span := sentry.StartSpan(ctx, name, options...)
	if attrs.RunID != "" {
		span.SetTag("run_id", attrs.RunID)
	}
	if attrs.Category != "" {
		span.SetTag("category", attrs.Category)
	}
	if attrs.BatchSize > 0 {
		span.SetData("batch_index", attrs.BatchIndex)
		span.SetData("batch_size", attrs.BatchSize)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}

	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub carried by ctx, or the global hub.
func CaptureError(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_code", domain.ErrorCode(err))
		hub.CaptureException(err)
	})
}

// AddBreadcrumb adds a breadcrumb to the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
	} else {
		sentry.AddBreadcrumb(breadcrumb)
	}
}
