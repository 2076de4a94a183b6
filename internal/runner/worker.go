package runner

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/figscale/loadgen/internal/metrics"
)

type worker struct {
	id       int
	opt      *Options
	rnd      *rand.Rand
	workload Workload
	log      *zap.Logger
}

// runWorker acquires the worker's session and loops until its own duration
// has elapsed or ctx is cancelled. Only session acquisition fails a worker.
func (r *Runner) runWorker(ctx context.Context, id int) error {
	rnd := rand.New(rand.NewSource(r.opt.Seed + int64(id)))
	log := r.opt.Logger.With(zap.Int("worker", id))

	workload, err := r.opt.NewWorkload(id, rnd)
	if err != nil {
		log.Error("worker failed to start", zap.Error(err))
		return fmt.Errorf("worker %d: %w", id, err)
	}

	w := &worker{id: id, opt: &r.opt, rnd: rnd, workload: workload, log: log}
	defer func() {
		if err := workload.Close(); err != nil {
			log.Debug("closing session", zap.Error(err))
		}
	}()

	w.loop(ctx)
	return nil
}

func (w *worker) loop(ctx context.Context) {
	// Calls already dispatched run to completion after cancellation so that
	// every request that reached the target is also recorded.
	callCtx := context.WithoutCancel(ctx)
	start := time.Now()
	cycles := 0

	for time.Since(start) < w.opt.Duration && ctx.Err() == nil {
		var (
			kind metrics.OperationKind
			res  RecipeResult
		)
		if w.rnd.Float64() < w.opt.ReadRatio {
			kind = metrics.OperationRead
			res = w.workload.ChooseRead(callCtx)
		} else {
			kind = metrics.OperationWrite
			res = w.workload.ChooseWrite(callCtx)
		}
		w.opt.Stats.RecordOperation(kind, res.Recipe, res.Aborted)
		cycles++

		if !sleepCtx(ctx, w.thinkTime()) {
			break
		}
	}

	w.log.Debug("worker done", zap.Int("cycles", cycles), zap.Duration("ran", time.Since(start)))
}

func (w *worker) thinkTime() time.Duration {
	span := w.opt.ThinkTimeMax - w.opt.ThinkTimeMin
	if span <= 0 {
		return w.opt.ThinkTimeMin
	}
	return w.opt.ThinkTimeMin + time.Duration(w.rnd.Int63n(int64(span)))
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
