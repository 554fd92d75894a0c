// Package metrics records key lifecycle events as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/mykeypanel/internal/domain/model"
	"github.com/ericfisherdev/mykeypanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RotationRecorder = (*Recorder)(nil)

// Recorder implements driven.RotationRecorder on its own registry so that tests
// and multiple instances never collide on the global default registry.
type Recorder struct {
	registry *prometheus.Registry

	rotations    *prometheus.CounterVec
	unlocks      *prometheus.CounterVec
	unlockedKeys prometheus.Gauge
}

// NewRecorder creates and registers all metrics. When withRuntime is true the
// Go runtime and process collectors are registered as well.
func NewRecorder(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rotations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mykeypanel_passphrase_rotations_total",
				Help: "Total number of passphrase rotation attempts by key type and outcome",
			},
			[]string{"key_type", "outcome"},
		),
		unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mykeypanel_unlocks_total",
				Help: "Total number of key unlock attempts by key type and outcome",
			},
			[]string{"key_type", "outcome"},
		),
		unlockedKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mykeypanel_unlocked_keys",
				Help: "Number of keys currently held decoded in memory",
			},
		),
	}

	r.registry.MustRegister(r.rotations, r.unlocks, r.unlockedKeys)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return r
}

// RecordRotation counts one passphrase rotation attempt.
func (r *Recorder) RecordRotation(keyType model.KeyType, outcome string) {
	r.rotations.WithLabelValues(string(keyType), outcome).Inc()
}

// RecordUnlock counts one unlock attempt.
func (r *Recorder) RecordUnlock(keyType model.KeyType, outcome string) {
	r.unlocks.WithLabelValues(string(keyType), outcome).Inc()
}

// SetUnlockedKeys sets the number of keys currently unlocked.
func (r *Recorder) SetUnlockedKeys(n int) {
	r.unlockedKeys.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
