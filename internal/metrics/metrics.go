// Package metrics holds the Prometheus collectors of a session.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inboxsync"

// Metrics is a private registry with the engine's collectors.
type Metrics struct {
	Registry *prometheus.Registry

	CacheEvents   *prometheus.CounterVec
	MergeOutcomes *prometheus.CounterVec
	Sends         *prometheus.CounterVec
	Connection    *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Cache reads and invalidations by event.",
		}, []string{"event"}),
		MergeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "events_total",
			Help:      "Push events processed by the merger, by outcome.",
		}, []string{"outcome"}),
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "sends_total",
			Help:      "Optimistic sends by result.",
		}, []string{"result"}),
		Connection: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "state",
			Help:      "1 for the current push channel state, 0 otherwise.",
		}, []string{"state"}),
	}
	m.Registry.MustRegister(m.CacheEvents, m.MergeOutcomes, m.Sends, m.Connection)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Merge counts one merger outcome.
func (m *Metrics) Merge(outcome string) {
	m.MergeOutcomes.WithLabelValues(outcome).Inc()
}

// Send counts one send result.
func (m *Metrics) Send(result string) {
	m.Sends.WithLabelValues(result).Inc()
}

// SetConnection marks state as current.
func (m *Metrics) SetConnection(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.Connection.WithLabelValues(s).Set(v)
	}
}

// Cache adapts the registry to cache.Metrics.
func (m *Metrics) Cache() CacheRecorder {
	return CacheRecorder{events: m.CacheEvents}
}

// CacheRecorder implements cache.Metrics.
type CacheRecorder struct {
	events *prometheus.CounterVec
}

func (r CacheRecorder) Hit()    { r.events.WithLabelValues("hit").Inc() }
func (r CacheRecorder) Miss()   { r.events.WithLabelValues("miss").Inc() }
func (r CacheRecorder) Expire() { r.events.WithLabelValues("expire").Inc() }
func (r CacheRecorder) Invalidate(n int) {
	r.events.WithLabelValues("invalidate").Add(float64(n))
}
