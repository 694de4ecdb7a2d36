package feed

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/pricewatch/internal/core/clock"
)

// EndpointStatus represents the health state of an endpoint.
type EndpointStatus int

const (
	StatusHealthy   EndpointStatus = iota // Endpoint is working normally
	StatusDegraded                        // Endpoint is slow but working
	StatusThrottled                       // Endpoint is rate limiting us
	StatusBlocked                         // Endpoint has blocked this client
)

func (s EndpointStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// MonitorStats holds monitoring statistics for an endpoint.
type MonitorStats struct {
	Status            string        `json:"status"`
	AverageLatency    time.Duration `json:"averageLatency"`
	ThrottleCount429  int           `json:"throttleCount429"`
	ThrottleCount403  int           `json:"throttleCount403"`
	RequestsLast1Hour int           `json:"requestsLast1h"`
	RetryAfter        time.Duration `json:"retryAfter"`
}

// Monitor tracks endpoint latency and upstream throttling.
type Monitor struct {
	mu    sync.RWMutex
	clock clock.Clock

	recentLatencies  []time.Duration
	maxLatencyWindow int

	status429Count   int
	status403Count   int
	throttlePatterns []string
	lastThrottleTime time.Time
	cooldown         time.Duration

	requestTimestamps []time.Time
	windowDuration    time.Duration

	slowResponseThreshold time.Duration
}

// NewMonitor creates a new monitor with default settings.
func NewMonitor(clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.Real()
	}
	return &Monitor{
		clock:            clk,
		recentLatencies:  make([]time.Duration, 0, 50),
		maxLatencyWindow: 50,
		throttlePatterns: []string{
			"rate limit exceeded",
			"too many requests",
			"throttled",
			"exceeded the rate limit",
			"monthly quota exceeded",
		},
		windowDuration:        time.Hour,
		slowResponseThreshold: 3 * time.Second,
	}
}

// RecordRequest records a successful request with its latency.
func (m *Monitor) RecordRequest(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}

	m.requestTimestamps = append(m.requestTimestamps, now)
	cutoff := now.Add(-m.windowDuration)
	filtered := m.requestTimestamps[:0]
	for _, t := range m.requestTimestamps {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	m.requestTimestamps = filtered
}

// RecordThrottle records a 429 or 403 response and starts a cooldown.
func (m *Monitor) RecordThrottle(statusCode int, retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.lastThrottleTime = now

	switch statusCode {
	case http.StatusTooManyRequests:
		m.status429Count++
		m.cooldown = parseRetryAfter(retryAfter, now, time.Minute)
	case http.StatusForbidden:
		m.status403Count++
		m.cooldown = 10 * time.Minute
	}
}

// DetectThrottlePattern checks if a response body contains throttle wording.
func (m *Monitor) DetectThrottlePattern(message string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowerMsg := strings.ToLower(message)
	for _, pattern := range m.throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}
	return false
}

// CheckStatus returns the current status of the endpoint.
func (m *Monitor) CheckStatus() EndpointStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() EndpointStatus {
	cooling := m.clock.Now().Sub(m.lastThrottleTime) < m.cooldown

	if m.status403Count > 0 && cooling {
		return StatusBlocked
	}
	if m.status429Count > 0 && cooling {
		return StatusThrottled
	}
	if len(m.recentLatencies) >= 10 && m.averageLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

// RetryAfter returns the remaining cooldown.
func (m *Monitor) RetryAfter() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retryAfterLocked()
}

func (m *Monitor) retryAfterLocked() time.Duration {
	remaining := m.cooldown - m.clock.Now().Sub(m.lastThrottleTime)
	if remaining > 0 {
		return remaining
	}
	return 0
}

func (m *Monitor) averageLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// Stats returns current monitoring statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.clock.Now().Add(-m.windowDuration)
	count := 0
	for _, t := range m.requestTimestamps {
		if t.After(cutoff) {
			count++
		}
	}

	return MonitorStats{
		Status:            m.statusLocked().String(),
		AverageLatency:    m.averageLocked(),
		ThrottleCount429:  m.status429Count,
		ThrottleCount403:  m.status403Count,
		RequestsLast1Hour: count,
		RetryAfter:        m.retryAfterLocked(),
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time, fallback time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
