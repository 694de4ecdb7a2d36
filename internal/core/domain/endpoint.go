package domain

import "time"

// DefaultEndpointTimeout bounds a single attempt when the descriptor does not set one.
const DefaultEndpointTimeout = 5 * time.Second

// ParseFunc extracts a candidate price from a raw response body.
// It reports false when the expected structure is absent.
type ParseFunc func(raw []byte) (float64, bool)

// EndpointDescriptor describes one data source in a fallback chain. Immutable.
type EndpointDescriptor struct {
	Name    string
	URL     string
	Asset   string // e.g. "XRP", used in validation messages
	Parse   ParseFunc
	Timeout time.Duration
}

// AttemptTimeout returns the configured timeout or the default.
func (d EndpointDescriptor) AttemptTimeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultEndpointTimeout
	}
	return d.Timeout
}
