/*
Package metrics defines and registers the engine's Prometheus metrics
(github.com/prometheus/client_golang), exposed over HTTP by
pkg/api/health.go's /metrics handler via metrics.Handler().

# Metric families

Scheduler:

	orga_epoch_duration_seconds     histogram  time to run one epoch to its merge boundary
	orga_busy_workers               gauge      worker slots currently dispatched
	orga_transitions_total{kind,outcome}  counter
	orga_reschedules_total{reason}   counter  ordered_after_rescheduled | speculative_conflict | key_hint_drift
	orga_gas_consumed_total          counter

Result cache:

	orga_cache_hits_total / orga_cache_misses_total   counter
	orga_cache_entries                                gauge

Store:

	orga_store_ops_total{op}   counter   op = get | put | delete | range | commit

Block/commit:

	orga_block_height            gauge
	orga_commit_duration_seconds histogram

Driver/Raft and API:

	orga_raft_is_leader, orga_raft_log_index, orga_raft_applied_index   gauge
	orga_api_requests_total{method,status}               counter
	orga_api_request_duration_seconds{method}            histogram

All metrics are package-level prometheus.Collector values registered
against the default registry in this package's init: a single flat var
block plus MustRegister rather than a per-subsystem registry.

# Timing helper

Timer wraps time.Now/time.Since for the common "observe how long this
took" pattern:

	t := metrics.NewTimer()
	// ... do work ...
	t.ObserveDuration(metrics.CommitDuration)

ObserveDurationVec does the same against a *Vec histogram with label
values, used where the metric is broken out by method or reason.
*/
package metrics
