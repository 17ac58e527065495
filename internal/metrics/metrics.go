// Package metrics registers the tournament's Prometheus instruments,
// mirroring the registration pattern in
// _examples/r3e-network-service_layer/infrastructure/metrics: package
// level construction, a Registry type bundling the collectors, and
// plain methods for updating them so callers never touch the
// prometheus API directly.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the tournament's metrics. The Supervisor updates
// GamesCompleted and SPRTLLR per finished game and QueueDepth on each
// progress report; GamesInFlight, EngineCrashes and EngineRestarts are
// registered but nothing updates them.
type Registry struct {
	GamesCompleted   prometheus.Counter
	GamesInFlight    prometheus.Gauge
	EngineCrashes    *prometheus.CounterVec
	EngineRestarts   *prometheus.CounterVec
	SPRTLLR          prometheus.Gauge
	QueueDepth       prometheus.Gauge
}

// New builds and registers a Registry against reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests), or
// prometheus.DefaultRegisterer to expose on the default /metrics path.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		GamesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gomocup",
			Name:      "games_completed_total",
			Help:      "Total games finished, across all pairings.",
		}),
		GamesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gomocup",
			Name:      "games_in_flight",
			Help:      "Games currently being played by a worker.",
		}),
		EngineCrashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gomocup",
			Name:      "engine_crashes_total",
			Help:      "Crashes observed per engine name.",
		}, []string{"engine"}),
		EngineRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gomocup",
			Name:      "engine_restarts_total",
			Help:      "Engine process restarts per engine name.",
		}, []string{"engine"}),
		SPRTLLR: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gomocup",
			Name:      "sprt_llr",
			Help:      "Current SPRT log-likelihood ratio, if SPRT is enabled.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gomocup",
			Name:      "queue_depth",
			Help:      "Jobs remaining in the job queue.",
		}),
	}
	reg.MustRegister(r.GamesCompleted, r.GamesInFlight, r.EngineCrashes, r.EngineRestarts, r.SPRTLLR, r.QueueDepth)
	return r
}
