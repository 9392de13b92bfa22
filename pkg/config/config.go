// Package config loads the runtime's own tunables — decompression thread
// count, tidal queue thresholds, monitor sampling — the same way the
// teacher codebase loads its application config: environment variables
// override a JSON file, which overrides built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds every tunable the runtime exposes upward. It is the
// constructor surface named in spec.md §6 ("a constructor taking a file
// path and an optional decompression-thread count") generalized into a
// single struct so every component shares one configuration story.
type Config struct {
	// DecompressionThreads is the number of BGZF block-decompression
	// workers. Zero means "use the default" (see Defaulted).
	DecompressionThreads int `json:"decompression_threads"`

	// TidalHighTide and TidalLowTide are the default hysteresis bounds for
	// any Queue-Tidal a caller constructs without its own explicit bounds.
	TidalHighTide int `json:"tidal_high_tide"`
	TidalLowTide  int `json:"tidal_low_tide"`

	// LineQueueCapacity is loaded and defaulted but not read by any
	// component: bgzf.NewEngine bounds the engine's output line queue with
	// TidalHighTide and TidalLowTide instead.
	LineQueueCapacity int `json:"line_queue_capacity"`

	// MonitorSampleInterval is how often a Queue-Monitor samples its queue.
	MonitorSampleInterval time.Duration `json:"monitor_sample_interval"`

	// MonitorStallSamples is the number of consecutive no-activity samples
	// (while the queue is non-empty) before the monitor emits a stall
	// warning.
	MonitorStallSamples int `json:"monitor_stall_samples"`

	// MetricsAddr, when non-empty, is the address a caller may use to
	// start a standalone Prometheus /metrics endpoint (pkg/queue and
	// pkg/pool only register collectors; they never start a server
	// themselves — that decision belongs to the embedding application).
	MetricsAddr string `json:"metrics_addr"`
}

// Defaulted returns a copy of cfg with every zero-valued field replaced by
// its runtime default.
func (cfg Config) Defaulted() Config {
	if cfg.DecompressionThreads <= 0 {
		cfg.DecompressionThreads = defaultDecompressionThreads()
	}
	if cfg.TidalHighTide <= 0 {
		cfg.TidalHighTide = 4000
	}
	if cfg.TidalLowTide <= 0 {
		cfg.TidalLowTide = 2000
	}
	if cfg.LineQueueCapacity <= 0 {
		cfg.LineQueueCapacity = 8000
	}
	if cfg.MonitorSampleInterval <= 0 {
		cfg.MonitorSampleInterval = 2 * time.Second
	}
	if cfg.MonitorStallSamples <= 0 {
		cfg.MonitorStallSamples = 5
	}
	return cfg
}

// defaultDecompressionThreads implements the Open Question resolution in
// SPEC_FULL.md §9: max(hardware_threads-1, 1).
func defaultDecompressionThreads() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Validate reports whether cfg (after defaulting) describes a usable
// runtime, per spec.md §3's `0 < low_tide < high_tide` invariant.
func (cfg Config) Validate() error {
	if cfg.TidalLowTide <= 0 {
		return fmt.Errorf("config: tidal_low_tide must be > 0, got %d", cfg.TidalLowTide)
	}
	if cfg.TidalHighTide <= cfg.TidalLowTide {
		return fmt.Errorf("config: tidal_high_tide (%d) must be > tidal_low_tide (%d)", cfg.TidalHighTide, cfg.TidalLowTide)
	}
	if cfg.DecompressionThreads <= 0 {
		return fmt.Errorf("config: decompression_threads must be > 0, got %d", cfg.DecompressionThreads)
	}
	if cfg.MonitorSampleInterval <= 0 {
		return fmt.Errorf("config: monitor_sample_interval must be > 0")
	}
	return nil
}

// Load reads configuration from an optional JSON file, then applies
// environment variable overrides (highest precedence), then fills in
// defaults for anything still unset. path may be empty, in which case
// only the environment and defaults apply.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg = cfg.Defaulted()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("KGLFLOW_DECOMPRESSION_THREADS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DecompressionThreads = n
		}
	}
	if v, ok := os.LookupEnv("KGLFLOW_TIDAL_HIGH_TIDE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TidalHighTide = n
		}
	}
	if v, ok := os.LookupEnv("KGLFLOW_TIDAL_LOW_TIDE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TidalLowTide = n
		}
	}
	if v, ok := os.LookupEnv("KGLFLOW_LINE_QUEUE_CAPACITY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LineQueueCapacity = n
		}
	}
	if v, ok := os.LookupEnv("KGLFLOW_MONITOR_SAMPLE_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MonitorSampleInterval = d
		}
	}
	if v, ok := os.LookupEnv("KGLFLOW_MONITOR_STALL_SAMPLES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MonitorStallSamples = n
		}
	}
	if v, ok := os.LookupEnv("KGLFLOW_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
}
