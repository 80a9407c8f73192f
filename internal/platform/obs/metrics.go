package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the process-wide Prometheus collectors. Construct one per
// process and inject it; components accept a nil *Metrics and become no-ops,
// which keeps tests free of registry bookkeeping.
type Metrics struct {
	CacheHits        *prometheus.CounterVec
	CacheMisses      prometheus.Counter
	CacheFallbacks   prometheus.Counter
	ProviderRequests *prometheus.CounterVec
	OptimizeDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_estimate_cache_hits_total",
			Help: "Travel estimate cache hits by tier.",
		}, []string{"tier"}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travel_estimate_cache_misses_total",
			Help: "Travel estimate cache misses.",
		}),
		CacheFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travel_estimate_fallbacks_total",
			Help: "Haversine fallbacks served after provider failures.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "distance_provider_requests_total",
			Help: "Distance provider requests by outcome.",
		}, []string{"outcome"}),
		OptimizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "route_optimize_duration_seconds",
			Help:    "Wall-clock duration of one technician-day optimization.",
			Buckets: []float64{.005, .01, .025, .05, .1, .2, .5, 1, 2.5, 5},
		}),
	}

	reg.MustRegister(m.CacheHits, m.CacheMisses, m.CacheFallbacks, m.ProviderRequests, m.OptimizeDuration)
	return m
}

func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(tier).Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) CacheFallback() {
	if m == nil {
		return
	}
	m.CacheFallbacks.Inc()
}

func (m *Metrics) ProviderRequest(outcome string) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveOptimize(seconds float64) {
	if m == nil {
		return
	}
	m.OptimizeDuration.Observe(seconds)
}
