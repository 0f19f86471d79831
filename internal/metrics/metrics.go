// Package metrics exposes Prometheus collectors for the draw pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/placement"
	"github.com/ayusman/mudra/internal/session"
)

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	gestures    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	iterations  prometheus.Histogram
	unsafe      prometheus.Counter
	art         *prometheus.CounterVec
	frames      *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gestures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mudra_gestures_total",
				Help: "Stabilized gesture changes by gesture",
			},
			[]string{"gesture"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mudra_transitions_total",
				Help: "Interaction state transitions",
			},
			[]string{"from", "to"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mudra_dropped_events_total",
				Help: "Gestures that failed a transition guard",
			},
			[]string{"state", "gesture"},
		),
		iterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mudra_placement_iterations",
				Help:    "Safety resolver iterations per confirmation",
				Buckets: []float64{0, 1, 5, 10, 20, 30, 40},
			},
		),
		unsafe: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mudra_placement_unsafe_total",
				Help: "Confirmations placed while still flagged unsafe",
			},
		),
		art: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mudra_art_requests_total",
				Help: "Art service requests by operation and result",
			},
			[]string{"op", "result"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mudra_frames_total",
				Help: "Input frames processed by input mode",
			},
			[]string{"mode"},
		),
	}

	m.registry.MustRegister(
		m.gestures, m.transitions, m.dropped, m.iterations, m.unsafe, m.art, m.frames,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Gesture records a stabilized gesture change.
func (m *Metrics) Gesture(g gesture.Gesture) {
	m.gestures.WithLabelValues(g.String()).Inc()
}

// Placement records one resolver run.
func (m *Metrics) Placement(res placement.Result) {
	m.iterations.Observe(float64(res.Iterations))
	if res.Unsafe {
		m.unsafe.Inc()
	}
}

// Art records an art request outcome. result is "ok", "error" or "cached".
func (m *Metrics) Art(op, result string) {
	m.art.WithLabelValues(op, result).Inc()
}

// Frame records one processed input frame.
func (m *Metrics) Frame(mode string) {
	m.frames.WithLabelValues(mode).Inc()
}

// OnEvent implements session.Observer.
func (m *Metrics) OnEvent(e session.Event) {
	switch e.Kind {
	case session.EventTransition:
		m.transitions.WithLabelValues(e.From.String(), e.To.String()).Inc()
		if e.Placement != nil {
			m.Placement(*e.Placement)
		}
	case session.EventDropped:
		m.dropped.WithLabelValues(e.From.String(), e.Gesture.String()).Inc()
	}
}
