package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector is the run-wide statistics aggregator shared by every worker.
// Request outcomes are recorded under a single mutex so that
// successes+failures always equals total in any snapshot.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	total        int64
	successes    int64
	failures     int64
	reads        int64
	writes       int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	statusCodes  map[int]int64
	errorsByKind map[ErrorKind]int64
	recipes      map[string]*RecipeStats
	start        time.Time
}

// RecipeStats counts how often a named recipe ran and how often its chain was cut short.
type RecipeStats struct {
	Runs    int64 `json:"runs" yaml:"runs"`
	Aborted int64 `json:"aborted" yaml:"aborted"`
}

// Stats represents aggregated metrics.
type Stats struct {
	Total           int64         `json:"total" yaml:"total"`
	Successes       int64         `json:"successful" yaml:"successful"`
	Failures        int64         `json:"failed" yaml:"failed"`
	ReadOperations  int64         `json:"read_operations" yaml:"read_operations"`
	WriteOperations int64         `json:"write_operations" yaml:"write_operations"`
	TotalLatency    time.Duration `json:"-" yaml:"-"`
	MinLatency      time.Duration `json:"-" yaml:"-"`
	MaxLatency      time.Duration `json:"-" yaml:"-"`
	MeanLatency     time.Duration `json:"-" yaml:"-"`
	P50Latency      time.Duration `json:"-" yaml:"-"`
	P90Latency      time.Duration `json:"-" yaml:"-"`
	P99Latency      time.Duration `json:"-" yaml:"-"`
	Duration        time.Duration `json:"-" yaml:"-"`
	RequestsPerSec  float64       `json:"qps" yaml:"qps"`
	SuccessRatePct  float64       `json:"success_rate_pct" yaml:"success_rate_pct"`

	// JSON-friendly millisecond fields.
	TotalLatencyMs float64 `json:"total_latency_ms" yaml:"total_latency_ms"`
	MinLatencyMs   float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs   float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs  float64 `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	P50LatencyMs   float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs   float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs   float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs     float64 `json:"duration_ms" yaml:"duration_ms"`

	StatusCodes map[string]int         `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
	Errors      map[string]int         `json:"errors,omitempty" yaml:"errors,omitempty"`
	Recipes     map[string]RecipeStats `json:"recipes,omitempty" yaml:"recipes,omitempty"`
}

// Counters is a cheap point-in-time view of the monotonic counters.
type Counters struct {
	Total        int64
	Successes    int64
	Failures     int64
	Reads        int64
	Writes       int64
	TotalLatency time.Duration
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		statusCodes:  make(map[int]int64),
		errorsByKind: make(map[ErrorKind]int64),
		recipes:      make(map[string]*RecipeStats),
		start:        time.Now(),
	}
}

// Start resets the reference time used by live progress output.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordRequest records a single request outcome.
func (c *Collector) RecordRequest(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	latency := o.Latency
	if latency < 0 {
		latency = 0
	}
	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency
	if c.total == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	c.total++
	if o.Success() {
		c.successes++
	} else {
		c.failures++
		c.errorsByKind[o.Kind]++
	}
	if o.StatusCode > 0 {
		c.statusCodes[o.StatusCode]++
	}
}

// RecordOperation counts one top-level read or write operation and the recipe it ran.
func (c *Collector) RecordOperation(kind OperationKind, recipe string, aborted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kind == OperationWrite {
		c.writes++
	} else {
		c.reads++
	}
	if recipe == "" {
		return
	}
	rs, ok := c.recipes[recipe]
	if !ok {
		rs = &RecipeStats{}
		c.recipes[recipe] = rs
	}
	rs.Runs++
	if aborted {
		rs.Aborted++
	}
}

// Counters returns the monotonic counters without computing percentiles.
func (c *Collector) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{
		Total:        c.total,
		Successes:    c.successes,
		Failures:     c.failures,
		Reads:        c.reads,
		Writes:       c.writes,
		TotalLatency: c.sumLatency,
	}
}

// Stats computes aggregated statistics, including the derived metrics,
// over the given wall-clock elapsed time.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Total:           c.total,
		Successes:       c.successes,
		Failures:        c.failures,
		ReadOperations:  c.reads,
		WriteOperations: c.writes,
		TotalLatency:    c.sumLatency,
		MinLatency:      c.minLatency,
		MaxLatency:      c.maxLatency,
	}

	if c.total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / c.total)
		stats.MeanLatencyMs = durationMs(c.sumLatency) / float64(c.total)
		stats.SuccessRatePct = float64(c.successes) / float64(c.total) * 100
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.TotalLatencyMs = durationMs(stats.TotalLatency)
	stats.MinLatencyMs = durationMs(stats.MinLatency)
	stats.MaxLatencyMs = durationMs(stats.MaxLatency)
	stats.P50LatencyMs = durationMs(stats.P50Latency)
	stats.P90LatencyMs = durationMs(stats.P90Latency)
	stats.P99LatencyMs = durationMs(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = durationMs(elapsed)
	if elapsed > 0 {
		stats.RequestsPerSec = float64(c.total) / elapsed.Seconds()
	}

	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[string]int, len(c.statusCodes))
		for code, n := range c.statusCodes {
			stats.StatusCodes[strconv.Itoa(code)] = int(n)
		}
	}
	if len(c.errorsByKind) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByKind))
		for kind, n := range c.errorsByKind {
			stats.Errors[kind.Label()] = int(n)
		}
	}
	if len(c.recipes) > 0 {
		stats.Recipes = make(map[string]RecipeStats, len(c.recipes))
		for name, rs := range c.recipes {
			stats.Recipes[name] = *rs
		}
	}

	return stats
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
