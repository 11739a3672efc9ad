package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics.
	EpochDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orga_epoch_duration_seconds",
			Help:    "Time taken to run one scheduler epoch to its merge boundary",
			Buckets: prometheus.DefBuckets,
		},
	)

	BusyWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orga_busy_workers",
			Help: "Number of virtual worker slots currently dispatched with a transition",
		},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orga_transitions_total",
			Help: "Total transitions executed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ReschedulesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orga_reschedules_total",
			Help: "Total transitions rescheduled, by reason",
		},
		[]string{"reason"},
	)

	GasConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orga_gas_consumed_total",
			Help: "Total gas charged across all executed transitions",
		},
	)

	// Result cache metrics.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orga_cache_hits_total",
			Help: "Total result cache lookups whose cached read-set replayed validly",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orga_cache_misses_total",
			Help: "Total result cache lookups that missed or failed replay validation",
		},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orga_cache_entries",
			Help: "Current number of entries held in the result cache",
		},
	)

	// Store metrics.
	StoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orga_store_ops_total",
			Help: "Total backing store operations, by op (get, put, delete, range, commit)",
		},
		[]string{"op"},
	)

	// Block/commit metrics.
	BlockHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orga_block_height",
			Help: "Height of the most recently opened block",
		},
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orga_commit_duration_seconds",
			Help:    "Time taken to flush a block's buffered store to the backing engine",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Driver/Raft metrics.
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orga_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orga_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orga_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// API metrics.
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orga_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orga_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		EpochDuration,
		BusyWorkers,
		TransitionsTotal,
		ReschedulesTotal,
		GasConsumedTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEntries,
		StoreOpsTotal,
		BlockHeight,
		CommitDuration,
		RaftLeader,
		RaftLogIndex,
		RaftAppliedIndex,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
