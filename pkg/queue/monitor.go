package queue

import (
	"sync"
	"time"

	"github.com/kgl-go/kglflow/pkg/logging"
)

// Sampled is the minimal surface a Monitor needs from a queue: both
// MTSafeQueue and TidalQueue satisfy it, and TidalSampled additionally
// exposes the tide-specific fields a monitor watching a TidalQueue wants.
type Sampled interface {
	Size() int64
	Activity() int64
}

// TidalSampled is satisfied by any TidalQueue[T] regardless of T.
type TidalSampled interface {
	Sampled
	QueueState() TideState
	HighTide() int
	LowTide() int
}

// Stats is the cumulative summary a Monitor reports on Stop, per spec.md
// §4.3's "average size, utilization, tide percentages".
type Stats struct {
	Samples        int64
	AverageSize    float64
	HighTideRatio  float64
	LowTideRatio   float64
	EbbRatio       float64
	EmptyRatio     float64
	StallsObserved int64
}

// minSamplesForSummary is the "enough samples were taken" threshold from
// spec.md §4.3's shutdown behavior.
const minSamplesForSummary = 3

// Monitor is a separately-owned background observer: it holds a
// non-owning reference to a queue (spec.md §3's ownership rule), samples
// it on an interval, and flags a queue that is non-empty with no activity
// across a configurable number of consecutive samples — the only
// deadlock-detection mechanism in the runtime (spec.md §4.3, §7).
type Monitor struct {
	name     string
	queue    Sampled
	tidal    TidalSampled // nil if the monitored queue is not tidal
	interval time.Duration
	stallAt  int
	log      logging.Sink
	metrics  *promMetrics

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu             sync.Mutex
	samples        int64
	cumulativeSize int64
	highTideCount  int64
	lowTideCount   int64
	ebbCount       int64
	emptyCount     int64
	lastActivity   int64
	noActivityRun  int
	stallsObserved int64
}

// MonitorConfig controls Monitor construction.
type MonitorConfig struct {
	Name     string
	Interval time.Duration
	// StallSamples is the consecutive-no-activity-while-non-empty count
	// that triggers a warning. Defaults to 5 if <= 0.
	StallSamples int
	Log          logging.Sink
	// Metrics, if set via WithPrometheus, exports this monitor's samples
	// as Prometheus collectors.
	Metrics *MetricsOption
}

// NewMonitor attaches a Monitor to any Sampled queue (MTSafeQueue or a
// TidalQueue used through its narrower interface) and starts its
// background sampling goroutine immediately.
func NewMonitor(q Sampled, cfg MonitorConfig) *Monitor {
	m := newMonitor(q, nil, cfg)
	go m.run()
	return m
}

// NewTidalMonitor attaches a Monitor to a TidalQueue, additionally
// tracking high-tide/low-tide/ebb sample buckets.
func NewTidalMonitor(q TidalSampled, cfg MonitorConfig) *Monitor {
	m := newMonitor(q, q, cfg)
	go m.run()
	return m
}

func newMonitor(q Sampled, tidal TidalSampled, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.StallSamples <= 0 {
		cfg.StallSamples = 5
	}
	if cfg.Log == nil {
		cfg.Log = logging.Noop()
	}
	var pm *promMetrics
	if cfg.Metrics != nil {
		pm = cfg.Metrics.build()
	}
	return &Monitor{
		name:     cfg.Name,
		queue:    q,
		tidal:    tidal,
		interval: cfg.Interval,
		stallAt:  cfg.StallSamples,
		log:      cfg.Log,
		metrics:  pm,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *Monitor) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	size := m.queue.Size()
	activity := m.queue.Activity()

	emptyThreshold := int64(0)
	var high, low int64 = -1, -1
	ebb := false
	if m.tidal != nil {
		high = int64(m.tidal.HighTide())
		low = int64(m.tidal.LowTide())
		ebb = m.tidal.QueueState() == Ebb
		emptyThreshold = int64(float64(high) * 0.1)
	}

	m.mu.Lock()
	m.samples++
	m.cumulativeSize += size
	if high >= 0 {
		if size >= high {
			m.highTideCount++
		}
		if size <= low {
			m.lowTideCount++
		}
		if ebb {
			m.ebbCount++
		}
		if size <= emptyThreshold {
			m.emptyCount++
		}
	} else if size == 0 {
		m.emptyCount++
	}

	if activity == m.lastActivity && size > 0 {
		m.noActivityRun++
	} else {
		m.noActivityRun = 0
	}
	m.lastActivity = activity

	stalled := m.noActivityRun >= m.stallAt
	if stalled {
		m.stallsObserved++
		m.noActivityRun = 0 // one warning per stall episode, not one per sample
	}
	m.mu.Unlock()

	m.metrics.observe(size, ebb)
	if stalled {
		m.metrics.recordStall()
		m.log.Log(logging.WarnLevel, "queue.monitor", "queue appears stalled", map[string]any{
			"queue": m.name,
			"size":  size,
		})
	}
}

// Stop halts the sampling goroutine, blocks until it has exited, and — if
// at least minSamplesForSummary samples were taken — logs a summary. Safe
// to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done

	if stats, ok := m.Stats(); ok {
		m.log.Log(logging.InfoLevel, "queue.monitor", "monitor summary", map[string]any{
			"queue":           m.name,
			"samples":         stats.Samples,
			"average_size":    stats.AverageSize,
			"high_tide_ratio": stats.HighTideRatio,
			"low_tide_ratio":  stats.LowTideRatio,
			"ebb_ratio":       stats.EbbRatio,
			"empty_ratio":     stats.EmptyRatio,
			"stalls":          stats.StallsObserved,
		})
	}
}

// Stats returns the cumulative summary. ok is false if fewer than
// minSamplesForSummary samples have been taken yet.
func (m *Monitor) Stats() (Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.samples < minSamplesForSummary {
		return Stats{}, false
	}
	n := float64(m.samples)
	return Stats{
		Samples:        m.samples,
		AverageSize:    float64(m.cumulativeSize) / n,
		HighTideRatio:  float64(m.highTideCount) / n,
		LowTideRatio:   float64(m.lowTideCount) / n,
		EbbRatio:       float64(m.ebbCount) / n,
		EmptyRatio:     float64(m.emptyCount) / n,
		StallsObserved: m.stallsObserved,
	}, true
}
