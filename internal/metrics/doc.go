// Package metrics aggregates the statistics of a load generation run.
//
// A single [Collector] is created per run and injected into every worker's
// request executor. Each HTTP call produces one [Outcome], recorded with
// [Collector.RecordRequest]; each top-level read or write operation is counted
// with [Collector.RecordOperation]:
//
//	collector := metrics.NewCollector()
//	collector.RecordRequest(metrics.Outcome{Latency: 12 * time.Millisecond, StatusCode: 200})
//	collector.RecordOperation(metrics.OperationRead, "list_files", false)
//
//	stats := collector.Stats(elapsed)
//
// # Derived metrics
//
// [Collector.Stats] computes average latency, QPS and success rate over the
// run's wall-clock time. Average latency and success rate are zero when no
// request was recorded.
//
// # Thread Safety
//
// Request outcomes are recorded under one mutex so that successes plus
// failures always equals the total in any snapshot. No lock is held across a
// network call.
//
// # Prometheus
//
// [Handler] serves the live counters through a dedicated registry.
package metrics
