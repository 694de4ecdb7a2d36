// Package health normalizes outbound attempts into error reports and exposes feed health.
package health

import (
	"time"

	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/infra/feed"
)

// SystemStatus represents the overall health state of the system or a feed.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// criticalStreak is the failure streak at which a feed is reported critical.
const criticalStreak = 3

// levelFor maps a consecutive-failure streak to a status.
func levelFor(streak int) SystemStatus {
	switch {
	case streak >= criticalStreak:
		return StatusCritical
	case streak > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// ValidResponse records the last value that passed validation.
type ValidResponse struct {
	Source string    `json:"source"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
}

// Status is an immutable snapshot of a feed's health counters.
type Status struct {
	Feed                string               `json:"feed"`
	Service             string               `json:"service"`
	Level               SystemStatus         `json:"status"`
	TotalErrors         int                  `json:"totalErrors"`
	ConsecutiveFailures int                  `json:"consecutiveFailures"`
	LastValidResponse   *ValidResponse       `json:"lastValidResponse"`
	RecentErrors        []domain.ErrorReport `json:"recentErrors"`
}

// EndpointStats is the usage view of one endpoint in a feed's fallback chain.
type EndpointStats struct {
	Name    string             `json:"name"`
	Monitor *feed.MonitorStats `json:"monitor,omitempty"`
	Quota   *feed.QuotaUsage   `json:"quota,omitempty"`
}

// Inspector is implemented by sources that track their own latency, throttling and quota.
type Inspector interface {
	MonitorStats() feed.MonitorStats
	QuotaUsage() (feed.QuotaUsage, bool)
}

// InspectSources returns stats for every source, in order.
// Sources that are not Inspectors are listed by name only.
func InspectSources(sources []Source) []EndpointStats {
	out := make([]EndpointStats, 0, len(sources))
	for _, src := range sources {
		es := EndpointStats{Name: src.Descriptor().Name}
		if in, ok := src.(Inspector); ok {
			m := in.MonitorStats()
			es.Monitor = &m
			if q, ok := in.QuotaUsage(); ok {
				es.Quota = &q
			}
		}
		out = append(out, es)
	}
	return out
}

// HealthReport contains the health of every feed.
type HealthReport struct {
	SystemStatus SystemStatus      `json:"system_status"`
	Feeds        map[string]Status `json:"feeds"`
}

// Aggregate folds per-feed statuses into a report. Worst status wins.
func Aggregate(statuses []Status) HealthReport {
	report := HealthReport{
		SystemStatus: StatusHealthy,
		Feeds:        make(map[string]Status, len(statuses)),
	}
	for _, s := range statuses {
		report.Feeds[s.Feed] = s
		switch s.Level {
		case StatusCritical:
			report.SystemStatus = StatusCritical
		case StatusDegraded:
			if report.SystemStatus != StatusCritical {
				report.SystemStatus = StatusDegraded
			}
		}
	}
	return report
}
