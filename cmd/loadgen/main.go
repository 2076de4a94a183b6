package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/figscale/loadgen/internal/auth"
	"github.com/figscale/loadgen/internal/catalog"
	"github.com/figscale/loadgen/internal/config"
	"github.com/figscale/loadgen/internal/dashboard"
	"github.com/figscale/loadgen/internal/executor"
	"github.com/figscale/loadgen/internal/logging"
	"github.com/figscale/loadgen/internal/metrics"
	"github.com/figscale/loadgen/internal/output"
	"github.com/figscale/loadgen/internal/runner"
	"github.com/figscale/loadgen/internal/threshold"
	"github.com/figscale/loadgen/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Simulate concurrent users against the file-sharing API",
		Long: `loadgen runs a pool of simulated users against the file-sharing API.
Each user repeatedly picks a read or a write recipe, issues the HTTP calls
it needs, pauses for a random think time, and stops once the duration has
passed. A summary of every request is printed when all users are done.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().LoadFlags(cmd.Flags())
			if err != nil {
				if errors.Is(err, config.ErrHelpRequested) {
					return nil
				}
				return err
			}
			return execute(cmd.Context(), cfg, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	config.RegisterFlags(cmd)
	return cmd
}

func execute(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := catalog.ValidateMix(cfg.ReadMix, cfg.WriteMix); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	// The dashboard owns the terminal while it runs; logs wait until it closes.
	var logSink io.Writer = stderr
	var held *heldWriter
	if cfg.Dashboard {
		held = &heldWriter{}
		logSink = held
		defer func() { _ = held.Release(stderr) }()
	}
	logger, err := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, logSink)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	authProvider, err := auth.FromToken(cfg.AuthToken)
	if err != nil {
		return err
	}
	if authProvider != nil {
		defer authProvider.Close()
	}

	collector := metrics.NewCollector()

	if cfg.MetricsAddr != "" {
		srv, addr, err := startMetricsServer(cfg.MetricsAddr, collector, logger)
		if err != nil {
			return err
		}
		logger.Info("serving metrics", zap.String("addr", addr.String()))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	factory := newWorkloadFactory(cfg, workloadDeps{
		auth:    authProvider,
		stats:   collector,
		limiter: executor.NewLimiter(cfg.Rate),
		tracer:  tp,
		logger:  logger,
	})

	r := runner.New(runner.Options{
		Concurrency:  cfg.Concurrency,
		Duration:     cfg.Duration,
		ReadRatio:    cfg.ReadRatio,
		ThinkTimeMin: cfg.ThinkTimeMin,
		ThinkTimeMax: cfg.ThinkTimeMax,
		Seed:         cfg.Seed,
		NewWorkload:  factory,
		Stats:        collector,
		Logger:       logger.Named("runner"),
	})

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var (
		dash     *dashboard.Dashboard
		progress *output.ProgressReporter
	)
	switch {
	case cfg.Dashboard:
		dash, err = dashboard.New(collector, dashboardInfo(cfg), stopRun)
		if err != nil {
			return err
		}
		dash.Start()
	case cfg.Progress && cfg.Output == config.OutputText:
		progress = output.NewProgressReporter(collector, progressInterval, stderr)
		progress.Start()
	}

	result, runErr := r.Run(runCtx)
	if dash != nil {
		dash.Stop()
		_ = held.Release(stderr)
	}
	if progress != nil {
		progress.Stop()
	}
	if runErr != nil {
		logger.Error("worker failed to start", zap.Error(runErr))
	}

	results := threshold.NewEvaluator(thresholds).Evaluate(result.Stats)
	report := output.NewReport(result.Started, runSettings(cfg, result.Seed), result.Stats, results)
	if err := output.Write(stdout, output.Format(cfg.Output), report); err != nil {
		return err
	}

	if cfg.HistoryFile != "" {
		if err := output.AppendHistory(cfg.HistoryFile, report); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if !report.Passed {
		return errThresholdsFailed
	}
	return nil
}

func runSettings(cfg *config.Config, seed int64) output.RunSettings {
	return output.RunSettings{
		Target:      cfg.TargetURL,
		Concurrency: cfg.Concurrency,
		Duration:    cfg.Duration.String(),
		ReadRatio:   cfg.ReadRatio,
		ThinkTime:   fmt.Sprintf("%s-%s", cfg.ThinkTimeMin, cfg.ThinkTimeMax),
		Rate:        cfg.Rate,
		Seed:        seed,
	}
}
