// Package dashboard renders a live terminal view of a running load test.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/figscale/loadgen/internal/metrics"
)

const (
	refreshInterval = 500 * time.Millisecond
	historySize     = 100
	maxListRows     = 10
)

// RunInfo is the static description of the run shown in the header.
type RunInfo struct {
	Target       string
	Concurrency  int
	Duration     time.Duration
	ReadRatio    float64
	ThinkTimeMin time.Duration
	ThinkTimeMax time.Duration
	Rate         int // 0 means unlimited
	Seed         int64
}

// Dashboard polls the collector and redraws the terminal until stopped.
// Pressing q or Ctrl-C calls the quit callback; the owner still calls Stop.
type Dashboard struct {
	collector *metrics.Collector
	info      RunInfo
	onQuit    func()

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.Mutex

	grid         *ui.Grid
	summary      *widgets.Paragraph
	qps          *widgets.Gauge
	operations   *widgets.Paragraph
	latency      *widgets.SparklineGroup
	latencyStats *widgets.Paragraph
	recipes      *widgets.List
	statuses     *widgets.List
	errors       *widgets.List

	latencyHistory []float64
	peakQPS        float64
	lastTotal      int64
	lastLatency    time.Duration
}

// New takes over the terminal. It fails when stdout is not a terminal.
func New(collector *metrics.Collector, info RunInfo, onQuit func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("initialize terminal dashboard: %w", err)
	}
	d := newDashboard(collector, info, onQuit)
	d.layout(ui.TerminalDimensions())
	return d, nil
}

func newDashboard(collector *metrics.Collector, info RunInfo, onQuit func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		collector:      collector,
		info:           info,
		onQuit:         onQuit,
		ctx:            ctx,
		cancel:         cancel,
		latencyHistory: make([]float64, 0, historySize),
	}

	d.summary = widgets.NewParagraph()
	d.summary.Title = "Load Test"
	d.summary.Text = "Starting workers..."

	d.qps = widgets.NewGauge()
	d.qps.Title = "Queries Per Second"
	d.qps.BarColor = ui.ColorBlue
	d.qps.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.operations = widgets.NewParagraph()
	d.operations.Title = "Operations"
	d.operations.Text = "Waiting for data..."

	line := widgets.NewSparkline()
	line.Title = "Interval mean (ms)"
	line.LineColor = ui.ColorGreen
	line.Data = []float64{0}
	d.latency = widgets.NewSparklineGroup(line)
	d.latency.Title = "Latency"

	d.latencyStats = widgets.NewParagraph()
	d.latencyStats.Title = "Latency Stats"

	d.recipes = widgets.NewList()
	d.recipes.Title = "Recipes"
	d.recipes.TextStyle = ui.NewStyle(ui.ColorCyan)

	d.statuses = widgets.NewList()
	d.statuses.Title = "Status Codes"

	d.errors = widgets.NewList()
	d.errors.Title = "Errors"
	d.errors.TextStyle = ui.NewStyle(ui.ColorYellow)

	for _, b := range []*ui.Block{
		&d.summary.Block, &d.qps.Block, &d.operations.Block, &d.latency.Block,
		&d.latencyStats.Block, &d.recipes.Block, &d.statuses.Block, &d.errors.Block,
	} {
		b.BorderStyle.Fg = ui.ColorCyan
	}

	d.update(metrics.Stats{}, 0)
	return d
}

func (d *Dashboard) layout(width, height int) {
	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, width, height)
	d.grid.Set(
		ui.NewRow(0.15, ui.NewCol(1.0, d.summary)),
		ui.NewRow(0.20,
			ui.NewCol(0.5, d.qps),
			ui.NewCol(0.5, d.operations),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latency),
			ui.NewCol(0.35, d.latencyStats),
		),
		ui.NewRow(0.35,
			ui.NewCol(0.4, d.recipes),
			ui.NewCol(0.3, d.statuses),
			ui.NewCol(0.3, d.errors),
		),
	)
}

// Start begins the refresh loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop ends the refresh loop and gives the terminal back. Safe to call twice.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		d.wg.Wait()
		ui.Close()
	})
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	events := ui.PollEvents()

	d.render()
	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				if d.onQuit != nil {
					d.onQuit()
				}
			case "<Resize>":
				size := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, size.Width, size.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			elapsed := d.collector.Elapsed()
			d.update(d.collector.Stats(elapsed), elapsed)
			d.render()
		}
	}
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

// update copies a snapshot into the widgets.
func (d *Dashboard) update(stats metrics.Stats, elapsed time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n := stats.Total - d.lastTotal; n > 0 {
		mean := float64(stats.TotalLatency-d.lastLatency) / float64(n) / float64(time.Millisecond)
		d.latencyHistory = append(d.latencyHistory, mean)
		if len(d.latencyHistory) > historySize {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latency.Sparklines[0].Data = d.latencyHistory
		d.latency.Title = fmt.Sprintf("Latency | last %.2fms | max %.2fms", mean, stats.MaxLatencyMs)
	}
	d.lastTotal, d.lastLatency = stats.Total, stats.TotalLatency

	if stats.RequestsPerSec > d.peakQPS {
		d.peakQPS = stats.RequestsPerSec
	}
	d.qps.Percent = gaugePercent(stats.RequestsPerSec, d.peakQPS)
	d.qps.Label = fmt.Sprintf("%.1f QPS (peak %.1f)", stats.RequestsPerSec, d.peakQPS)

	d.summary.Text = fmt.Sprintf("Target: %s\n%s\nElapsed: %s | Requests: %d | Success Rate: %.1f%%",
		d.info.Target, formatRunInfo(d.info), elapsed.Round(time.Second), stats.Total, stats.SuccessRatePct)
	d.operations.Text = formatOperations(stats)
	d.latencyStats.Text = fmt.Sprintf("Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms\nMax:  %.2fms",
		stats.MinLatencyMs, stats.MeanLatencyMs, stats.P50LatencyMs, stats.P90LatencyMs, stats.P99LatencyMs, stats.MaxLatencyMs)

	d.recipes.Rows = recipeRows(stats.Recipes)
	d.statuses.Rows = statusRows(stats.StatusCodes)
	d.errors.Rows = errorRows(stats.Errors)
}

func gaugePercent(current, peak float64) int {
	if peak <= 0 {
		return 0
	}
	pct := int(current / peak * 100)
	if pct > 100 {
		return 100
	}
	return pct
}

func formatRunInfo(info RunInfo) string {
	parts := []string{fmt.Sprintf("Workers: %d", info.Concurrency)}
	if info.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", info.Duration))
	}
	parts = append(parts,
		fmt.Sprintf("Reads: %.0f%%", info.ReadRatio*100),
		fmt.Sprintf("Think: %s-%s", info.ThinkTimeMin, info.ThinkTimeMax),
	)
	if info.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", info.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if info.Seed != 0 {
		parts = append(parts, fmt.Sprintf("Seed: %d", info.Seed))
	}
	return strings.Join(parts, " | ")
}

func formatOperations(stats metrics.Stats) string {
	ops := stats.ReadOperations + stats.WriteOperations
	readShare := 0.0
	if ops > 0 {
		readShare = float64(stats.ReadOperations) / float64(ops) * 100
	}
	return fmt.Sprintf("Reads:      %d\nWrites:     %d\nRead share: %.1f%%\nSuccessful: %d\nFailed:     %d",
		stats.ReadOperations, stats.WriteOperations, readShare, stats.Successes, stats.Failures)
}

// recipeRows lists the busiest recipes first.
func recipeRows(recipes map[string]metrics.RecipeStats) []string {
	if len(recipes) == 0 {
		return []string{"Awaiting data"}
	}
	names := make([]string, 0, len(recipes))
	for name := range recipes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := recipes[names[i]], recipes[names[j]]
		if a.Runs == b.Runs {
			return names[i] < names[j]
		}
		return a.Runs > b.Runs
	})

	rows := make([]string, 0, len(names))
	for _, name := range names {
		rs := recipes[name]
		row := fmt.Sprintf("[%s](fg:cyan) runs %d", name, rs.Runs)
		if rs.Aborted > 0 {
			row += fmt.Sprintf(" | [aborted %d (%.1f%%)](fg:yellow)", rs.Aborted, float64(rs.Aborted)/float64(rs.Runs)*100)
		}
		rows = append(rows, row)
	}
	return rows
}

func statusRows(codes map[string]int) []string {
	buckets := metrics.FlattenStatusBuckets(codes)
	if len(buckets) == 0 {
		return []string{"No responses yet"}
	}
	if len(buckets) > maxListRows {
		buckets = buckets[:maxListRows]
	}
	rows := make([]string, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, fmt.Sprintf("[%s](fg:%s) %d", b.Code, statusColor(b.Code), b.Count))
	}
	return rows
}

func statusColor(code string) string {
	n, err := strconv.Atoi(code)
	switch {
	case err != nil:
		return "white"
	case n >= 500:
		return "red"
	case n >= 400:
		return "yellow"
	default:
		return "green"
	}
}

func errorRows(errs map[string]int) []string {
	if len(errs) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	kinds := make([]string, 0, len(errs))
	for kind := range errs {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	rows := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", kind, errs[kind]))
	}
	return rows
}
