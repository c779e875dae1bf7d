// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the log sink.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems stay isolated in subpackages (prompush,
//     datadog); the rest of the codebase depends only on this interface.
//
// The primary use case is instrumentation of the emit cycle (provisioning,
// write, prune) without coupling the sink to a specific metrics system.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordEmit is a convenience for the common pattern:
// measure latency + success/failure per emit cycle.
func RecordEmit(table string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"table":  table,
		"status": status,
	}

	backend.IncCounter("sink_emit_total", 1, lbls)
	backend.ObserveHistogram("sink_emit_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given table and kind.
//
// Typical kinds:
//   - "written"
//   - "dropped"
func RecordRows(table, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("sink_rows_total", float64(delta), Labels{
		"table": table,
		"kind":  kind,
	})
}

// RecordPrune increments the pruned-row counter for the given table.
func RecordPrune(table string, deleted int64) {
	if deleted <= 0 {
		return
	}
	backend.IncCounter("sink_prune_deleted_total", float64(deleted), Labels{
		"table": table,
	})
}
