package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/pricewatch/internal/core/clock"
	"github.com/vietddude/pricewatch/internal/infra/storage"
)

// Pruner deletes stored error reports older than the retention period.
type Pruner struct {
	repo   storage.ReportPruner
	maxAge time.Duration
	clock  clock.Clock
	log    *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(repo storage.ReportPruner, maxAge time.Duration, clk clock.Clock) *Pruner {
	if clk == nil {
		clk = clock.Real()
	}
	return &Pruner{
		repo:   repo,
		maxAge: maxAge,
		clock:  clk,
		log:    slog.Default().With("component", "pruner"),
	}
}

// Interval is 10% of the retention period, clamped to [1m, 1h].
func (p *Pruner) Interval() time.Duration {
	interval := min(p.maxAge/10, 1*time.Hour)
	return max(interval, 1*time.Minute)
}

// Start runs the pruner loop until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.maxAge <= 0 {
		return // Retention disabled
	}

	ticker := p.clock.NewTicker(p.Interval())
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.Prune(ctx)
		}
	}
}

// Prune runs one retention pass and returns the number of deleted reports.
func (p *Pruner) Prune(ctx context.Context) int {
	cutoff := p.clock.Now().Add(-p.maxAge)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("Failed to prune error reports", "error", err)
		return 0
	}
	if n > 0 {
		p.log.Debug("Pruned error reports", "count", n, "cutoff", cutoff)
	}
	return n
}
