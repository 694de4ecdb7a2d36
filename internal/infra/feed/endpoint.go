// Package feed implements the HTTP side of a price feed.
//
// This package contains:
//   - HTTPEndpoint: one upstream price API bound to an EndpointDescriptor
//   - Monitor: latency and throttle tracking per endpoint
//   - Quota: daily call allowance per endpoint
//   - PathParser: gjson based parse functions built from config
//   - Validate: structural and semantic checks of a response body
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/pricewatch/internal/core/clock"
	"github.com/vietddude/pricewatch/internal/core/domain"
	"github.com/vietddude/pricewatch/internal/pricing/metrics"
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 1 << 20

// HTTPEndpoint fetches raw price payloads from a single upstream API.
type HTTPEndpoint struct {
	desc       domain.EndpointDescriptor
	httpClient *http.Client
	limiter    *rate.Limiter
	quota      *Quota
	quotaLimit int
	clock      clock.Clock

	Monitor *Monitor
}

// Option configures an HTTPEndpoint.
type Option func(*HTTPEndpoint)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *HTTPEndpoint) {
		e.httpClient = c
	}
}

// WithRateLimit caps outbound calls to rps requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *HTTPEndpoint) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithDailyQuota caps calls per UTC day. n <= 0 disables the cap.
func WithDailyQuota(n int) Option {
	return func(e *HTTPEndpoint) {
		e.quotaLimit = n
	}
}

// WithClock injects the clock used for latency and cooldown tracking.
func WithClock(c clock.Clock) Option {
	return func(e *HTTPEndpoint) {
		e.clock = c
	}
}

// NewHTTPEndpoint creates an endpoint for desc.
func NewHTTPEndpoint(desc domain.EndpointDescriptor, opts ...Option) *HTTPEndpoint {
	e := &HTTPEndpoint{
		desc:  desc,
		clock: clock.Real(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.httpClient == nil {
		e.httpClient = &http.Client{
			// Backstop only; the caller's context carries the real deadline.
			Timeout: 2 * desc.AttemptTimeout(),
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	e.Monitor = NewMonitor(e.clock)
	if e.quotaLimit > 0 {
		e.quota = NewQuota(e.quotaLimit, e.clock)
	}
	return e
}

// Descriptor returns the endpoint's descriptor.
func (e *HTTPEndpoint) Descriptor() domain.EndpointDescriptor {
	return e.desc
}

// Fetch issues one GET and returns the body of a 2xx response.
// Every failure is a *domain.FetchError.
func (e *HTTPEndpoint) Fetch(ctx context.Context) ([]byte, error) {
	name := e.desc.Name
	start := e.clock.Now()

	// Local guards: nothing is sent, so the reports carry no status.
	switch status := e.Monitor.CheckStatus(); status {
	case StatusBlocked, StatusThrottled:
		return nil, domain.NewSkippedError(name,
			fmt.Sprintf("endpoint %s, cooling down, retry after %v", status, e.Monitor.RetryAfter().Round(time.Second)))
	}

	if e.limiter != nil && !e.limiter.Allow() {
		return nil, domain.NewSkippedError(name, "local rate limit exceeded")
	}
	if e.quota != nil {
		allowed := e.quota.Allow()
		metrics.EndpointQuotaRemaining.WithLabelValues(name).Set(float64(e.quota.Usage().Remaining))
		if !allowed {
			return nil, domain.NewSkippedError(name, "daily quota exhausted")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.desc.URL, nil)
	if err != nil {
		return nil, domain.NewNetworkError(name, "invalid request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transportError(ctx, name, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Monitor.RecordThrottle(resp.StatusCode, resp.Header.Get("Retry-After"))
		return nil, domain.NewHTTPError(name, resp.StatusCode, "rate limited by upstream")
	case resp.StatusCode == http.StatusForbidden:
		e.Monitor.RecordThrottle(resp.StatusCode, "")
		return nil, domain.NewHTTPError(name, resp.StatusCode, "access forbidden by upstream")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		if e.Monitor.DetectThrottlePattern(string(body)) {
			e.Monitor.RecordThrottle(http.StatusTooManyRequests, resp.Header.Get("Retry-After"))
			return nil, domain.NewHTTPError(name, resp.StatusCode, "throttle detected in response")
		}
		return nil, domain.NewHTTPError(name, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	e.Monitor.RecordRequest(e.clock.Now().Sub(start))
	return body, nil
}

// MonitorStats returns latency and throttle statistics.
func (e *HTTPEndpoint) MonitorStats() MonitorStats {
	return e.Monitor.Stats()
}

// QuotaUsage returns daily quota statistics, if a quota is configured.
func (e *HTTPEndpoint) QuotaUsage() (QuotaUsage, bool) {
	if e.quota == nil {
		return QuotaUsage{}, false
	}
	return e.quota.Usage(), true
}

// Close releases idle connections.
func (e *HTTPEndpoint) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

func transportError(ctx context.Context, endpoint string, err error) *domain.FetchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewTimeoutError(endpoint, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewTimeoutError(endpoint, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewNetworkError(endpoint, "request cancelled", err)
	}
	return domain.NewNetworkError(endpoint, "connection failed", err)
}
