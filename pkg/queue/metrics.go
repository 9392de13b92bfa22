package queue

import "github.com/prometheus/client_golang/prometheus"

// promMetrics mirrors the counter/gauge grouping in
// internal/ratelimiter/telemetry/churn/prom_counters.go from the pack: a
// handful of global-cardinality collectors registered once per monitored
// queue name, updated from the monitor's sampling loop rather than from
// the hot Push/Pop path (so metrics export never adds lock contention to
// producers or consumers).
type promMetrics struct {
	size   prometheus.Gauge
	ebb    prometheus.Gauge
	stalls prometheus.Counter
}

// MetricsOption is returned by WithPrometheus and consumed by NewMonitor /
// NewTidalMonitor via MonitorConfig.Metrics.
type MetricsOption struct {
	reg  prometheus.Registerer
	name string
}

// WithPrometheus registers a queue_size gauge, a queue_ebb_state gauge
// (1 = EBB, 0 = FLOOD — zero for a plain MTSafeQueue), and a
// queue_stalls_total counter against reg, labeled by queueName. Pass the
// result as MonitorConfig.Metrics.
func WithPrometheus(reg prometheus.Registerer, queueName string) MetricsOption {
	return MetricsOption{reg: reg, name: queueName}
}

func (o MetricsOption) build() *promMetrics {
	if o.reg == nil {
		return nil
	}
	pm := &promMetrics{
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kglflow_queue_size",
			Help:        "Current number of items queued.",
			ConstLabels: prometheus.Labels{"queue": o.name},
		}),
		ebb: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kglflow_queue_ebb_state",
			Help:        "1 if the queue is in the EBB (producers blocked) state, else 0.",
			ConstLabels: prometheus.Labels{"queue": o.name},
		}),
		stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kglflow_queue_stalls_total",
			Help:        "Number of stall episodes (non-empty, no activity) detected by the monitor.",
			ConstLabels: prometheus.Labels{"queue": o.name},
		}),
	}
	// Registration failure (duplicate collector) is not fatal: the caller
	// may be re-attaching a monitor to a queue whose metrics are already
	// registered from a prior run, which is common in tests.
	_ = o.reg.Register(pm.size)
	_ = o.reg.Register(pm.ebb)
	_ = o.reg.Register(pm.stalls)
	return pm
}

func (pm *promMetrics) observe(size int64, ebb bool) {
	if pm == nil {
		return
	}
	pm.size.Set(float64(size))
	if ebb {
		pm.ebb.Set(1)
	} else {
		pm.ebb.Set(0)
	}
}

func (pm *promMetrics) recordStall() {
	if pm == nil {
		return
	}
	pm.stalls.Inc()
}
