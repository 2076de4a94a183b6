package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/figscale/loadgen/internal/metrics"
)

// Result captures the run summary handed to reporting.
type Result struct {
	Stats   metrics.Stats
	Elapsed time.Duration
	Started time.Time
	Seed    int64 // effective seed, after a zero seed was replaced
}

// Runner spawns the workers and joins them.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Stats returns the shared collector, for live progress and exporters.
func (r *Runner) Stats() *metrics.Collector {
	return r.opt.Stats
}

// Run starts Concurrency workers and returns once the slowest has finished.
// The error is the first worker start-up failure; the Result is complete
// either way and reflects every worker that did run.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.opt.NewWorkload == nil {
		return Result{}, errors.New("runner: workload factory is required")
	}

	r.opt.Logger.Info("starting run",
		zap.Int("concurrency", r.opt.Concurrency),
		zap.Duration("duration", r.opt.Duration),
		zap.Float64("read_ratio", r.opt.ReadRatio),
		zap.Int64("seed", r.opt.Seed),
	)

	r.opt.Stats.Start()
	started := time.Now()

	var g errgroup.Group
	for i := 0; i < r.opt.Concurrency; i++ {
		id := i
		g.Go(func() error {
			return r.runWorker(ctx, id)
		})
	}
	err := g.Wait()

	elapsed := time.Since(started)
	stats := r.opt.Stats.Stats(elapsed)
	r.opt.Logger.Info("run finished",
		zap.Duration("elapsed", elapsed),
		zap.Int64("requests", stats.Total),
		zap.Int64("failed", stats.Failures),
	)

	return Result{Stats: stats, Elapsed: elapsed, Started: started, Seed: r.opt.Seed}, err
}
