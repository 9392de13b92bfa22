package pool

import "github.com/prometheus/client_golang/prometheus"

// promMetrics mirrors pkg/queue's promMetrics grouping: a small set of
// collectors registered once per named pool, updated from the hot
// enqueue/worker path directly since a Pool (unlike a Monitor-sampled
// queue) has no separate sampling loop to defer to.
type promMetrics struct {
	queueDepth prometheus.Gauge
	completed  prometheus.Counter
}

// MetricsOption is returned by WithPrometheus and consumed by New.
type MetricsOption struct {
	reg  prometheus.Registerer
	name string
}

// WithPrometheus registers a pool_queue_depth gauge and a
// pool_completed_total counter against reg, labeled by poolName. Pass the
// result to New.
func WithPrometheus(reg prometheus.Registerer, poolName string) MetricsOption {
	return MetricsOption{reg: reg, name: poolName}
}

func (o MetricsOption) build() *promMetrics {
	if o.reg == nil {
		return nil
	}
	pm := &promMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kglflow_pool_queue_depth",
			Help:        "Current number of callables queued but not yet started.",
			ConstLabels: prometheus.Labels{"pool": o.name},
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kglflow_pool_completed_total",
			Help:        "Total number of callables that have finished running.",
			ConstLabels: prometheus.Labels{"pool": o.name},
		}),
	}
	// Registration failure (duplicate collector) is not fatal: the caller
	// may be starting a second pool under the same name in tests.
	_ = o.reg.Register(pm.queueDepth)
	_ = o.reg.Register(pm.completed)
	return pm
}

func (pm *promMetrics) observeDepth(n int64) {
	if pm == nil {
		return
	}
	pm.queueDepth.Set(float64(n))
}

func (pm *promMetrics) recordCompleted() {
	if pm == nil {
		return
	}
	pm.completed.Inc()
}
