// Package metrics exposes Prometheus instrumentation for the data-access core.
//
// All collectors are registered on the default registry through promauto, so
// importing the package is enough to have them scraped:
//
//	metrics.QueriesTotal.WithLabelValues("postgres", metrics.PhaseCount, metrics.StatusOK).Inc()
//
//	timer := metrics.NewTimer()
//	runQuery()
//	metrics.QueryDuration.WithLabelValues("postgres", metrics.PhasePage).Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query phases.
const (
	PhaseCount  = "count"
	PhasePage   = "page"
	PhaseStream = "stream"
	PhaseScalar = "scalar"
)

// Outcome labels.
const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusUnavailable = "unavailable"
)

// Cache results.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheRefresh = "refresh"
	CacheError   = "error"
)

var (
	// QueriesTotal counts executed queries.
	// Labels: dialect, phase (count/page/stream/scalar), status (ok/error/unavailable)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beepdata_queries_total",
			Help: "Total number of queries executed",
		},
		[]string{"dialect", "phase", "status"},
	)

	// QueryDuration tracks query latency in seconds.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "beepdata_query_duration_seconds",
			Help: "Query latency in seconds",
			Buckets: []float64{
				0.0005, // sub-millisecond lookups
				0.001,
				0.005,
				0.01,
				0.05,
				0.1,
				0.5,
				1,
				5,
				30, // long analytical scans
			},
		},
		[]string{"dialect", "phase"},
	)

	// RowsStreamed counts rows yielded to callers.
	RowsStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beepdata_rows_streamed_total",
			Help: "Total number of rows yielded by streamed queries",
		},
		[]string{"source"},
	)

	// CacheRequests counts cache lookups.
	// Labels: cache (structure/entities), result (hit/miss/refresh/error)
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beepdata_cache_requests_total",
			Help: "Total number of cache lookups",
		},
		[]string{"cache", "result"},
	)

	// OpenCommands tracks commands holding a pooled connection.
	OpenCommands = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beepdata_open_commands",
			Help: "Number of commands currently holding a connection",
		},
		[]string{"datasource"},
	)
)

// Status maps an error to its outcome label.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since the timer started. It may be called
// more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveQuery records the outcome and latency of one query phase.
func ObserveQuery(dialect, phase string, d time.Duration, err error) {
	QueriesTotal.WithLabelValues(dialect, phase, Status(err)).Inc()
	QueryDuration.WithLabelValues(dialect, phase).Observe(d.Seconds())
}
