// Package telemetry exposes prometheus metrics about metadata refreshes and queries.
package telemetry

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mdq"

// Metrics holds the collectors, each instance owns its own registry
type Metrics struct {
	registry       *prometheus.Registry
	refreshesTotal *prometheus.CounterVec
	clientsLoaded  prometheus.Gauge
	queriesTotal   *prometheus.CounterVec
	signingTotal   *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		refreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_refreshes_total",
			Help:      "Metadata refresh cycles by outcome.",
		}, []string{"outcome"}),
		clientsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metadata_clients",
			Help:      "Number of clients in the current metadata snapshot.",
		}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Metadata queries by response status code.",
		}, []string{"code"}),
		signingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signing_total",
			Help:      "Signing attempts by algorithm and outcome.",
		}, []string{"alg", "outcome"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.refreshesTotal,
		m.clientsLoaded,
		m.queriesTotal,
		m.signingTotal,
	)
	return m
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RefreshCompleted records a refresh cycle
func (m *Metrics) RefreshCompleted(success bool, clients int) {
	m.refreshesTotal.WithLabelValues(outcome(success)).Inc()
	m.clientsLoaded.Set(float64(clients))
}

// QueryCompleted records the status code a query was answered with
func (m *Metrics) QueryCompleted(status int) {
	m.queriesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// SigningCompleted records a signing attempt
func (m *Metrics) SigningCompleted(alg string, success bool) {
	m.signingTotal.WithLabelValues(alg, outcome(success)).Inc()
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry gives access to the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
