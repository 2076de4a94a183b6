// Package runner is the load generation engine: a fixed pool of simulated
// users, each looping read/write operations with think-time pauses until the
// run duration has elapsed.
//
// Every worker opens its own [Workload] through the [WorkloadFactory], so
// connection state is never shared between users. The only shared state is
// the [metrics.Collector] and whatever the factory chooses to share (a rate
// limiter, an auth provider).
//
//	r := runner.New(runner.Options{
//		Concurrency:  10,
//		Duration:     5 * time.Minute,
//		ReadRatio:    0.8,
//		ThinkTimeMin: 100 * time.Millisecond,
//		ThinkTimeMax: time.Second,
//		NewWorkload:  factory,
//		Stats:        collector,
//	})
//	res, err := r.Run(ctx)
//
// The duration is checked between cycles, so a worker may overrun it by one
// operation plus one think-time. Cancelling ctx stops workers at the next
// check and interrupts think-time; calls already in flight complete and are
// recorded.
package runner
