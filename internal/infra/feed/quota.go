package feed

import (
	"sync"
	"time"

	"github.com/vietddude/pricewatch/internal/core/clock"
)

// QuotaUsage holds daily quota statistics for one endpoint.
type QuotaUsage struct {
	Used            int       `json:"used"`
	DailyLimit      int       `json:"dailyLimit"`
	Remaining       int       `json:"remaining"`
	UsagePercentage float64   `json:"usagePercentage"`
	NextResetAt     time.Time `json:"nextResetAt"`
}

// Quota counts calls against a daily allowance that resets at midnight UTC.
type Quota struct {
	mu      sync.Mutex
	limit   int
	used    int
	resetAt time.Time
	clock   clock.Clock
}

// NewQuota creates a quota of limit calls per day. limit <= 0 is unlimited.
func NewQuota(limit int, clk clock.Clock) *Quota {
	if clk == nil {
		clk = clock.Real()
	}
	return &Quota{
		limit:   limit,
		resetAt: nextMidnight(clk.Now()),
		clock:   clk,
	}
}

// Allow consumes one call if any remain.
func (q *Quota) Allow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.maybeResetLocked()
	if q.limit > 0 && q.used >= q.limit {
		return false
	}
	q.used++
	return true
}

// Usage returns current statistics.
func (q *Quota) Usage() QuotaUsage {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.maybeResetLocked()
	u := QuotaUsage{
		Used:        q.used,
		DailyLimit:  q.limit,
		NextResetAt: q.resetAt,
	}
	if q.limit > 0 {
		u.Remaining = max(q.limit-q.used, 0)
		u.UsagePercentage = float64(q.used) / float64(q.limit) * 100
	}
	return u
}

func (q *Quota) maybeResetLocked() {
	now := q.clock.Now()
	if now.Before(q.resetAt) {
		return
	}
	q.used = 0
	q.resetAt = nextMidnight(now)
}

func nextMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day()+1, 0, 0, 0, 0, time.UTC)
}
