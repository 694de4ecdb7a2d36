// Package oracle runs the ordered-fallback price fetch for a feed.
package oracle

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/vietddude/pricewatch/internal/core/clock"
	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/pricing/health"
	"github.com/vietddude/pricewatch/internal/pricing/metrics"
)

const cycleCancelled = "cancelled"

var _ health.EndpointFeed = (*Orchestrator)(nil)

// Orchestrator owns the OracleState of one feed.
// Only FetchPrice writes the state; readers get copies.
type Orchestrator struct {
	id       string
	registry *Registry
	reporter *health.Reporter
	clock    clock.Clock
	hub      *Hub
	log      *slog.Logger

	state    atomic.Pointer[domain.OracleState]
	inFlight atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// New creates an Orchestrator in the Idle state.
func New(id string, registry *Registry, reporter *health.Reporter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		id:       id,
		registry: registry,
		reporter: reporter,
		clock:    clock.Real(),
		hub:      NewHub(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	idle := domain.IdleState()
	o.state.Store(&idle)
	return o
}

// ID returns the feed identifier.
func (o *Orchestrator) ID() string {
	return o.id
}

// FetchPrice runs one cycle over the registry in priority order and returns the committed state.
// If a cycle is already in flight the call is suppressed and the current state is returned.
// If ctx ends mid-cycle the state committed before the cycle is restored and the streak is untouched.
func (o *Orchestrator) FetchPrice(ctx context.Context) domain.OracleState {
	if !o.inFlight.CompareAndSwap(false, true) {
		metrics.CyclesSuppressedTotal.WithLabelValues(o.id).Inc()
		o.log.Debug("Fetch suppressed, cycle already in flight", "feed", o.id)
		return o.State()
	}
	defer o.inFlight.Store(false)

	prev := o.current()
	o.commit(prev.Loading())

	var last *domain.ErrorReport
	for _, src := range o.registry.Sources() {
		out := o.reporter.Attempt(ctx, src)
		if out.Cancelled {
			// Shutdown is not an outage: restore the last committed state.
			o.commit(prev)
			metrics.CyclesTotal.WithLabelValues(o.id, cycleCancelled).Inc()
			o.log.Debug("Fetch cycle cancelled", "feed", o.id, "endpoint", out.Source)
			return prev.Clone()
		}
		if out.OK {
			next := o.current().Succeeded(out.Price, out.Source, o.clock.Now())
			o.commit(next)
			metrics.CyclesTotal.WithLabelValues(o.id, string(domain.StatusSuccess)).Inc()
			metrics.CurrentPrice.WithLabelValues(o.id, out.Source).Set(out.Price)
			o.log.Debug("Price updated", "feed", o.id, "source", out.Source, "price", out.Price)
			return next.Clone()
		}
		last = out.Report
	}

	final := o.reporter.Exhausted(*last)
	next := o.current().Failed(final, o.clock.Now())
	o.commit(next)
	metrics.CyclesTotal.WithLabelValues(o.id, string(domain.StatusError)).Inc()
	o.log.Error("All endpoints failed",
		"feed", o.id,
		"endpoints", o.registry.Len(),
		"consecutive_failures", final.ConsecutiveFailures,
		"last_endpoint", final.Context.Endpoint,
		"reason", final.Context.Reason,
	)
	return next.Clone()
}

// State returns a copy of the current state.
func (o *Orchestrator) State() domain.OracleState {
	return o.current().Clone()
}

// Health returns the feed's health snapshot.
func (o *Orchestrator) Health() health.Status {
	return o.reporter.Status()
}

// Subscribe registers for committed state changes.
func (o *Orchestrator) Subscribe() (<-chan domain.OracleState, func()) {
	return o.hub.Subscribe()
}

// EndpointStats returns usage statistics for each endpoint in the fallback chain.
func (o *Orchestrator) EndpointStats() []health.EndpointStats {
	return health.InspectSources(o.registry.Sources())
}

// Endpoints returns the fallback chain in order.
func (o *Orchestrator) Endpoints() []string {
	return o.registry.Names()
}

func (o *Orchestrator) current() domain.OracleState {
	return *o.state.Load()
}

func (o *Orchestrator) commit(s domain.OracleState) {
	o.state.Store(&s)
	o.hub.Publish(s)
}
