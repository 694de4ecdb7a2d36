package oracle

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/pricewatch/internal/core/clock"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 60 * time.Second

// Poller drives an Orchestrator on a fixed interval until its context is cancelled.
type Poller struct {
	orch     *Orchestrator
	interval time.Duration
	clock    clock.Clock
	log      *slog.Logger
}

// NewPoller creates a poller for orch.
func NewPoller(orch *Orchestrator, interval time.Duration, clk clock.Clock) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Poller{
		orch:     orch,
		interval: interval,
		clock:    clk,
		log:      slog.Default().With("feed", orch.ID()),
	}
}

// Run fetches immediately, then on every tick. Cancelling ctx stops the ticker
// and aborts any in-flight request. It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("Starting price poller", "interval", p.interval, "endpoints", p.orch.Endpoints())

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.orch.FetchPrice(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Price poller stopped")
			return nil
		case <-ticker.C():
			p.orch.FetchPrice(ctx)
		}
	}
}
