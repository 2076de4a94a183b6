package main

import (
	"math/rand"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/figscale/loadgen/internal/auth"
	"github.com/figscale/loadgen/internal/catalog"
	"github.com/figscale/loadgen/internal/config"
	"github.com/figscale/loadgen/internal/executor"
	"github.com/figscale/loadgen/internal/httpclient"
	"github.com/figscale/loadgen/internal/metrics"
	"github.com/figscale/loadgen/internal/runner"
	"github.com/figscale/loadgen/internal/tracing"
)

// workloadDeps are shared by every worker.
type workloadDeps struct {
	auth    auth.Provider
	stats   *metrics.Collector
	limiter *rate.Limiter
	tracer  *tracing.Provider
	logger  *zap.Logger
}

// sessionWorkload ties a catalog to the session it sends through, so the
// worker's connections are released when it finishes.
type sessionWorkload struct {
	*catalog.Catalog
	session *httpclient.Session
}

func (w sessionWorkload) Close() error {
	return w.session.Close()
}

func newWorkloadFactory(cfg *config.Config, deps workloadDeps) runner.WorkloadFactory {
	return func(workerID int, rnd *rand.Rand) (runner.Workload, error) {
		opts := httpclient.SessionOptions{
			BaseURL: cfg.TargetURL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout,
		}
		if deps.auth != nil {
			opts.Auth = deps.auth
		}
		session, err := httpclient.NewSession(opts)
		if err != nil {
			return nil, err
		}

		exec, err := executor.New(executor.Options{
			Session:        session,
			Stats:          deps.stats,
			Tracer:         deps.tracer.Tracer(),
			Logger:         deps.logger.With(zap.Int("worker", workerID)),
			LogErrors:      cfg.LogErrors,
			Limiter:        deps.limiter,
			Propagate:      deps.tracer.ShouldPropagate(),
			ErrorBodyLimit: cfg.ErrorBodyLimit,
		})
		if err != nil {
			session.Close()
			return nil, err
		}

		cat, err := catalog.New(exec, rnd, cfg.ReadMix, cfg.WriteMix)
		if err != nil {
			session.Close()
			return nil, err
		}
		return sessionWorkload{Catalog: cat, session: session}, nil
	}
}
