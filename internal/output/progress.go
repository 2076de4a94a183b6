package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/figscale/loadgen/internal/metrics"
)

// ProgressReporter rewrites a single status line at a fixed interval.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	printed   bool
}

func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		interval:  interval,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return
	}
	go p.run()
}

// Stop halts updates and terminates the status line. It is safe to call
// more than once, or without Start.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 2) {
		close(p.done)
		<-p.finished
		if p.printed {
			fmt.Fprintln(p.writer)
		}
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(p.writer, progressLine(p.collector.Counters(), p.collector.Elapsed()))
			p.printed = true
		case <-p.done:
			return
		}
	}
}

func progressLine(c metrics.Counters, elapsed time.Duration) string {
	qps := 0.0
	if elapsed > 0 {
		qps = float64(c.Total) / elapsed.Seconds()
	}
	return fmt.Sprintf("\r[%s] Requests: %d | OK: %d | Failed: %d | Reads: %d | Writes: %d | QPS: %.1f",
		elapsed.Truncate(time.Second), c.Total, c.Successes, c.Failures, c.Reads, c.Writes, qps)
}
