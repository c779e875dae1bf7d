// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the sink labels (table, status, kind) onto Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint (the sink is library code inside a
//     host process and cannot assume it owns an HTTP listener).
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends (e.g. Datadog, StatsD) without changes to the sink.
package prompush

import (
	"fmt"

	"pgsink/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	// Emit-cycle metrics
	emitCounter  *prometheus.CounterVec // "sink_emit_total"
	emitDuration *prometheus.SummaryVec // sink_emit_duration_seconds (summary)

	// Row-level metrics
	rowCounter   *prometheus.CounterVec // "sink_rows_total"
	pruneCounter *prometheus.CounterVec // "sink_prune_deleted_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often the host application's name).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "pgsink"
	}

	reg := prometheus.NewRegistry()

	emitCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_emit_total",
			Help: "Total number of emit cycles, partitioned by table and status.",
		},
		[]string{"table", "status"},
	)
	emitDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "sink_emit_duration_seconds",
			Help:       "Duration of emit cycles in seconds, partitioned by table and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"table", "status"},
	)

	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_rows_total",
			Help: "Row-level counts per table and kind (written, dropped).",
		},
		[]string{"table", "kind"},
	)

	pruneCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_prune_deleted_total",
			Help: "Total number of rows removed by retention pruning, per table.",
		},
		[]string{"table"},
	)

	if err := reg.Register(emitCounter); err != nil {
		return nil, fmt.Errorf("prompush: register emit counter: %w", err)
	}
	if err := reg.Register(emitDuration); err != nil {
		return nil, fmt.Errorf("prompush: register emit summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}
	if err := reg.Register(pruneCounter); err != nil {
		return nil, fmt.Errorf("prompush: register prune counter: %w", err)
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		emitCounter:  emitCounter,
		emitDuration: emitDuration,
		rowCounter:   rowCounter,
		pruneCounter: pruneCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "sink_emit_total":
		if b.emitCounter == nil {
			return
		}
		b.emitCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)

	case "sink_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["table"], labels["kind"]).Add(delta)

	case "sink_prune_deleted_total":
		if b.pruneCounter == nil {
			return
		}
		b.pruneCounter.WithLabelValues(labels["table"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "sink_emit_duration_seconds" || b.emitDuration == nil {
		return
	}
	b.emitDuration.WithLabelValues(labels["table"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
