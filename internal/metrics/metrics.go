package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Write outcomes recorded against the write counter.
const (
	OutcomeSuccess         = "success"
	OutcomeDenied          = "denied"
	OutcomeInvalid         = "invalid"
	OutcomeNotFound        = "not_found"
	OutcomeVersionConflict = "version_conflict"
	OutcomeTokenExists     = "token_exists"
	OutcomeError           = "error"
)

// Recorder counts write-path outcomes per resource and operation.
type Recorder struct {
	registry *prometheus.Registry
	writes   *prometheus.CounterVec
}

// NewRecorder constructs a Recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blogsite",
		Name:      "write_operations_total",
		Help:      "Write-path operations by resource, operation, and outcome.",
	}, []string{"resource", "operation", "outcome"})

	registry.MustRegister(writes)
	registry.MustRegister(collectors.NewGoCollector())

	return &Recorder{registry: registry, writes: writes}
}

// Registry exposes the underlying registry for the /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordWrite counts one write-path outcome.
func (r *Recorder) RecordWrite(resource, operation, outcome string) {
	if r == nil {
		return
	}
	r.writes.WithLabelValues(resource, operation, outcome).Inc()
}
