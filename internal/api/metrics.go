package api

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the process's Prometheus collectors. One instance is
// shared by the Dispatcher and registered once at startup.
type Metrics struct {
	cacheHits       prometheus.Counter
	chainOutcomes   *prometheus.CounterVec
	chainLength     prometheus.Histogram
}

// NewMetrics builds and registers the collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobcoordinator_dispatch_cache_hits_total",
			Help: "Requests answered directly from the blob cache without scheduling a handler.",
		}),
		chainOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobcoordinator_chain_outcomes_total",
			Help: "Terminal outcomes of completed Handle runs, by outcome label.",
		}, []string{"outcome"}),
		chainLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobcoordinator_chain_length",
			Help:    "Number of subjobs in a dispatched chain.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
	}
	reg.MustRegister(m.cacheHits, m.chainOutcomes, m.chainLength)
	return m
}

func (m *Metrics) observeOutcome(outcome string) {
	m.chainOutcomes.WithLabelValues(outcome).Inc()
}
