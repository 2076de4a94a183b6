package runner

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/figscale/loadgen/internal/metrics"
)

// RecipeResult reports what one top-level read or write operation did.
type RecipeResult struct {
	Recipe  string // name of the recipe that ran
	Calls   int    // underlying HTTP calls issued
	Aborted bool   // chain stopped early on a failure or missing data
}

// Workload is one simulated user's view of the operation catalog. A worker
// owns its Workload exclusively and closes it when it finishes.
type Workload interface {
	ChooseRead(ctx context.Context) RecipeResult
	ChooseWrite(ctx context.Context) RecipeResult
	Close() error
}

// WorkloadFactory opens the per-worker session and returns the workload
// bound to it. rnd belongs to the worker and is not safe to share.
type WorkloadFactory func(workerID int, rnd *rand.Rand) (Workload, error)

// Options configure the Runner.
type Options struct {
	Concurrency  int           // number of simulated users
	Duration     time.Duration // per-worker run time, checked between cycles
	ReadRatio    float64       // probability that an operation is a read
	ThinkTimeMin time.Duration // pause between operations, drawn uniformly
	ThinkTimeMax time.Duration // from [ThinkTimeMin, ThinkTimeMax)
	Seed         int64         // 0 seeds from the clock
	NewWorkload  WorkloadFactory
	Stats        *metrics.Collector // shared aggregator; created when nil
	Logger       *zap.Logger
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Duration < 0 {
		o.Duration = 0
	}
	if !(o.ReadRatio >= 0) { // also catches NaN
		o.ReadRatio = 0
	}
	if o.ReadRatio > 1 {
		o.ReadRatio = 1
	}
	if o.ThinkTimeMin < 0 {
		o.ThinkTimeMin = 0
	}
	if o.ThinkTimeMax < o.ThinkTimeMin {
		o.ThinkTimeMax = o.ThinkTimeMin
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Stats == nil {
		o.Stats = metrics.NewCollector()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}
