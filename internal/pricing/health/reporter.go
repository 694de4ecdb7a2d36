package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/pricewatch/internal/core/clock"
	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/infra/feed"
	"github.com/vietddude/pricewatch/internal/pricing/metrics"
)

// DefaultHistorySize is how many recent reports a Reporter keeps.
const DefaultHistorySize = 10

// Source is any outbound data source a Reporter can wrap.
type Source interface {
	Descriptor() domain.EndpointDescriptor
	Fetch(ctx context.Context) ([]byte, error)
}

// ReportSink receives every report a Reporter emits. Submit must not block.
type ReportSink interface {
	Submit(feed string, report domain.ErrorReport)
}

// Outcome is the typed result of one wrapped attempt.
// Cancelled is set when the caller's context ended the attempt; no report is emitted then.
type Outcome struct {
	OK        bool
	Cancelled bool
	Price     float64
	Source    string
	Report    *domain.ErrorReport
}

// Reporter wraps attempts for one logical feed and tracks its failure streak.
type Reporter struct {
	feed        string
	service     string
	historySize int
	clock       clock.Clock
	sink        ReportSink
	log         *slog.Logger

	mu                  sync.RWMutex
	totalErrors         int
	consecutiveFailures int
	lastValid           *ValidResponse
	recent              []domain.ErrorReport
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

func WithHistorySize(n int) ReporterOption {
	return func(r *Reporter) {
		if n > 0 {
			r.historySize = n
		}
	}
}

func WithClock(c clock.Clock) ReporterOption {
	return func(r *Reporter) {
		r.clock = c
	}
}

func WithSink(s ReportSink) ReporterOption {
	return func(r *Reporter) {
		r.sink = s
	}
}

func WithLogger(l *slog.Logger) ReporterOption {
	return func(r *Reporter) {
		r.log = l
	}
}

// NewReporter creates a Reporter for feed. Reports carry service as their origin.
func NewReporter(feed, service string, opts ...ReporterOption) *Reporter {
	if service == "" {
		service = feed
	}
	r := &Reporter{
		feed:        feed,
		service:     service,
		historySize: DefaultHistorySize,
		clock:       clock.Real(),
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.recent = make([]domain.ErrorReport, 0, r.historySize)
	return r
}

// Attempt runs one bounded fetch from src and validates the result.
// It never panics and never returns a raw error: failures come back as Outcome.Report.
// An attempt stopped by ctx itself (shutdown, not the per-attempt deadline) is not a failure.
func (r *Reporter) Attempt(ctx context.Context, src Source) (out Outcome) {
	desc := src.Descriptor()
	if ctx.Err() != nil {
		return Outcome{Cancelled: true, Source: desc.Name}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, desc.AttemptTimeout())
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			out = r.fail(domain.NewValidationError(desc.Name, fmt.Sprintf("parser panic: %v", p)))
		}
	}()

	start := time.Now()
	raw, err := src.Fetch(attemptCtx)
	metrics.FetchLatency.WithLabelValues(r.feed, desc.Name).Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		r.log.Debug("Endpoint attempt cancelled", "feed", r.feed, "endpoint", desc.Name)
		return Outcome{Cancelled: true, Source: desc.Name}
	}
	if err == nil && attemptCtx.Err() != nil {
		// The source ignored cancellation; its late payload is discarded.
		err = attemptCtx.Err()
	}
	if err != nil {
		return r.fail(asFetchError(attemptCtx, desc.Name, err))
	}

	price, err := feed.Validate(raw, desc)
	if err != nil {
		return r.fail(asFetchError(attemptCtx, desc.Name, err))
	}

	r.succeed(desc.Name, price)
	return Outcome{OK: true, Price: price, Source: desc.Name}
}

// Exhausted closes a cycle in which every attempt failed.
// It advances the streak by one and returns last stamped with the new streak.
func (r *Reporter) Exhausted(last domain.ErrorReport) domain.ErrorReport {
	r.mu.Lock()
	r.consecutiveFailures++
	n := r.consecutiveFailures
	r.mu.Unlock()

	metrics.ConsecutiveFailures.WithLabelValues(r.feed).Set(float64(n))
	return last.WithFailures(n)
}

// Status returns a snapshot. The caller owns the returned value.
func (r *Reporter) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Status{
		Feed:                r.feed,
		Service:             r.service,
		Level:               levelFor(r.consecutiveFailures),
		TotalErrors:         r.totalErrors,
		ConsecutiveFailures: r.consecutiveFailures,
		RecentErrors:        make([]domain.ErrorReport, len(r.recent)),
	}
	copy(s.RecentErrors, r.recent)
	if r.lastValid != nil {
		v := *r.lastValid
		s.LastValidResponse = &v
	}
	return s
}

func (r *Reporter) succeed(source string, price float64) {
	r.mu.Lock()
	r.consecutiveFailures = 0
	r.lastValid = &ValidResponse{Source: source, Price: price, At: r.clock.Now()}
	r.mu.Unlock()

	metrics.FetchAttemptsTotal.WithLabelValues(r.feed, source, "success").Inc()
	metrics.ConsecutiveFailures.WithLabelValues(r.feed).Set(0)
}

func (r *Reporter) fail(fe *domain.FetchError) Outcome {
	r.mu.Lock()
	r.totalErrors++
	report := domain.NewErrorReport(r.service, fe, r.consecutiveFailures, r.clock.Now())
	r.recent = append(r.recent, report)
	if len(r.recent) > r.historySize {
		r.recent = r.recent[len(r.recent)-r.historySize:]
	}
	r.mu.Unlock()

	metrics.FetchAttemptsTotal.WithLabelValues(r.feed, fe.Endpoint, "failure").Inc()
	metrics.FetchErrorsTotal.WithLabelValues(r.feed, fe.Endpoint, fe.Kind.String()).Inc()

	r.log.Warn("Endpoint attempt failed",
		"feed", r.feed,
		"endpoint", fe.Endpoint,
		"kind", fe.Kind.String(),
		"reason", fe.Reason,
		"status", fe.StatusCode,
	)

	if r.sink != nil {
		r.sink.Submit(r.feed, report)
	}
	return Outcome{Report: &report}
}

func asFetchError(ctx context.Context, endpoint string, err error) *domain.FetchError {
	if fe, ok := domain.AsFetchError(err); ok {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewTimeoutError(endpoint, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewNetworkError(endpoint, "request cancelled", err)
	}
	return domain.NewNetworkError(endpoint, "unexpected failure", err)
}
