package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttemptsTotal tracks endpoint attempts per feed, endpoint and outcome
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_attempts_total",
			Help: "Total number of endpoint fetch attempts",
		},
		[]string{"feed", "endpoint", "outcome"},
	)

	// FetchErrorsTotal tracks failed attempts by error kind
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_fetch_errors_total",
			Help: "Total number of failed endpoint attempts",
		},
		[]string{"feed", "endpoint", "kind"},
	)

	// FetchLatency tracks endpoint attempt latency
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricewatch_fetch_latency_seconds",
			Help:    "Endpoint attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed", "endpoint"},
	)

	// CyclesTotal tracks completed fetch cycles by final status
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_cycles_total",
			Help: "Total number of completed fetch cycles",
		},
		[]string{"feed", "status"},
	)

	// CyclesSuppressedTotal tracks fetch calls dropped by the re-entrancy guard
	CyclesSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_cycles_suppressed_total",
			Help: "Fetch calls suppressed because a cycle was already in flight",
		},
		[]string{"feed"},
	)

	// CurrentPrice is the last committed price per feed
	CurrentPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pricewatch_current_price",
			Help: "Last successfully fetched price",
		},
		[]string{"feed", "source"},
	)

	// ConsecutiveFailures is the current failure streak per feed
	ConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pricewatch_consecutive_failures",
			Help: "Consecutive failed fetch cycles",
		},
		[]string{"feed"},
	)

	// ClassificationsTotal tracks classifier verdicts
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_classifications_total",
			Help: "Error reports classified by category",
		},
		[]string{"service", "category"},
	)

	// AlertsDroppedTotal tracks reports dropped because the dispatcher queue was full
	AlertsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewatch_alerts_dropped_total",
			Help: "Error reports dropped before classification",
		},
	)

	// AlertsSentTotal tracks reports forwarded to alert sinks
	AlertsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_alerts_sent_total",
			Help: "Error reports forwarded to alert sinks",
		},
		[]string{"sink", "outcome"},
	)

	// ReportsStoredTotal tracks persisted error reports
	ReportsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewatch_reports_stored_total",
			Help: "Error reports written to the report repository",
		},
		[]string{"feed", "outcome"},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricewatch_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)

	// StreamSubscribers is the number of live state stream clients
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricewatch_stream_subscribers",
			Help: "Open websocket state stream connections",
		},
	)

	// EndpointQuotaRemaining is the daily quota left per endpoint
	EndpointQuotaRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pricewatch_endpoint_quota_remaining",
			Help: "Calls left in the endpoint's daily quota",
		},
		[]string{"endpoint"},
	)
)
