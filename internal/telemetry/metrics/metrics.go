// Package metrics provides Prometheus metrics collection for each agent
// process, grounded on r3e-network-service_layer's infrastructure/metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared across an agent process.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	MatchOutcomesTotal *prometheus.CounterVec
	CircuitState       *prometheus.GaugeVec
	StandingsVersion   prometheus.Gauge
}

// New creates a Metrics instance registered on the default registerer.
func New(agent string) *Metrics {
	return NewWithRegistry(agent, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance on a custom registerer
// (tests use a fresh registry to avoid collisions with the default one).
func NewWithRegistry(agent string, reg prometheus.Registerer) *Metrics {
	constLabels := prometheus.Labels{"agent": agent}
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "league_rpc_requests_total",
			Help:        "Total number of league.v2 RPC requests handled.",
			ConstLabels: constLabels,
		}, []string{"method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "league_rpc_request_duration_seconds",
			Help:        "Duration of league.v2 RPC requests in seconds.",
			Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"method"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "league_rpc_requests_in_flight",
			Help:        "Number of in-flight league.v2 RPC requests.",
			ConstLabels: constLabels,
		}),
		MatchOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "league_match_outcomes_total",
			Help:        "Total number of completed matches by outcome status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "league_circuit_breaker_state",
			Help:        "Circuit breaker state per endpoint (0=closed, 1=half-open, 2=open).",
			ConstLabels: constLabels,
		}, []string{"endpoint"}),
		StandingsVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "league_standings_version",
			Help:        "Current monotonic standings version.",
			ConstLabels: constLabels,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.RequestsTotal, m.RequestDuration, m.RequestsInFlight,
		m.MatchOutcomesTotal, m.CircuitState, m.StandingsVersion,
	} {
		_ = reg.Register(c)
	}
	return m
}
