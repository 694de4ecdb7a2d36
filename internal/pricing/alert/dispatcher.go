// Package alert classifies error reports and forwards the ones that matter.
package alert

import (
	"context"
	"log/slog"

	"github.com/vietddude/pricewatch/internal/core/clock"
	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/infra/storage"
	"github.com/vietddude/pricewatch/internal/pricing/classify"
	"github.com/vietddude/pricewatch/internal/pricing/metrics"
)

// DefaultQueueSize bounds reports waiting for classification.
const DefaultQueueSize = 256

// Sink receives classified reports of real feeds.
type Sink interface {
	Name() string
	Send(ctx context.Context, rec *storage.ReportRecord) error
}

type envelope struct {
	feed   string
	report domain.ErrorReport
}

// Dispatcher persists, classifies and forwards error reports.
// It implements health.ReportSink.
type Dispatcher struct {
	classifier *classify.Classifier
	repo       storage.ReportRepository
	sinks      []Sink
	simulated  map[string]bool
	queue      chan envelope
	clock      clock.Clock
	log        *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithRepository(repo storage.ReportRepository) Option {
	return func(d *Dispatcher) {
		d.repo = repo
	}
}

func WithSinks(sinks ...Sink) Option {
	return func(d *Dispatcher) {
		d.sinks = append(d.sinks, sinks...)
	}
}

// WithSimulated marks feeds whose reports are stored but never forwarded.
func WithSimulated(feeds ...string) Option {
	return func(d *Dispatcher) {
		for _, f := range feeds {
			d.simulated[f] = true
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan envelope, n)
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// NewDispatcher creates a Dispatcher using classifier.
func NewDispatcher(classifier *classify.Classifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		classifier: classifier,
		simulated:  make(map[string]bool),
		queue:      make(chan envelope, DefaultQueueSize),
		clock:      clock.Real(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit enqueues a report without blocking. A full queue drops the report.
func (d *Dispatcher) Submit(feed string, report domain.ErrorReport) {
	select {
	case d.queue <- envelope{feed: feed, report: report}:
	default:
		metrics.AlertsDroppedTotal.Inc()
		d.log.Warn("Alert queue full, dropping report",
			"feed", feed,
			"error_code", report.ErrorCode,
		)
	}
}

// Run processes queued reports until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-d.queue:
			d.Process(ctx, env.feed, env.report)
		}
	}
}

// Drain processes every queued report and returns how many were handled.
func (d *Dispatcher) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case env := <-d.queue:
			d.Process(ctx, env.feed, env.report)
			n++
		default:
			return n
		}
	}
}

// Process handles one report synchronously and returns the stored record.
func (d *Dispatcher) Process(ctx context.Context, feed string, report domain.ErrorReport) *storage.ReportRecord {
	result := d.classifier.Classify(report)
	metrics.ClassificationsTotal.WithLabelValues(report.Service, string(result.Category)).Inc()

	rec := storage.NewReportRecord(feed, report, result, d.clock.Now())

	if d.repo != nil {
		if err := d.repo.Save(ctx, rec); err != nil {
			metrics.ReportsStoredTotal.WithLabelValues(feed, "failure").Inc()
			d.log.Error("Failed to store error report", "feed", feed, "error", err)
		} else {
			metrics.ReportsStoredTotal.WithLabelValues(feed, "success").Inc()
		}
	}

	if !result.IsValidError {
		d.log.Debug("Suppressed false positive",
			"feed", feed,
			"service", report.Service,
			"error_code", report.ErrorCode,
			"reason", result.Reason,
		)
		return rec
	}
	if d.simulated[feed] {
		d.log.Debug("Not alerting for simulated feed", "feed", feed, "error_code", report.ErrorCode)
		return rec
	}

	for _, sink := range d.sinks {
		if err := sink.Send(ctx, rec); err != nil {
			metrics.AlertsSentTotal.WithLabelValues(sink.Name(), "failure").Inc()
			d.log.Warn("Alert sink failed", "sink", sink.Name(), "feed", feed, "error", err)
			continue
		}
		metrics.AlertsSentTotal.WithLabelValues(sink.Name(), "success").Inc()
	}
	return rec
}

// Pending returns the number of queued reports.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}
