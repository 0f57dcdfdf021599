package drain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the coordinator's instruments. Only allocated when the caller
// opts in with WithMetrics.
type metrics struct {
	listenersActive prometheus.Gauge
	triggered       prometheus.Counter
	drainDuration   prometheus.Histogram
}

func newMetrics(registerer prometheus.Registerer) *metrics {
	factory := promauto.With(registerer)

	return &metrics{
		listenersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shutdown_listeners_active",
			Help: "Number of shutdown listeners that have not been released yet.",
		}),
		triggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "shutdown_triggered_total",
			Help: "Number of times shutdown has been triggered. At most 1 per coordinator.",
		}),
		drainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shutdown_drain_duration_seconds",
			Help:    "Time between the shutdown trigger and the release of the last listener.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
