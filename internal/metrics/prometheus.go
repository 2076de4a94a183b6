package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes a Collector's counters to Prometheus. Values are read at
// scrape time, so the exporter never adds work to the request path.
type Exporter struct {
	collector  *Collector
	requests   *prometheus.Desc
	operations *prometheus.Desc
	latencySum *prometheus.Desc
}

func NewExporter(c *Collector) *Exporter {
	return &Exporter{
		collector: c,
		requests: prometheus.NewDesc(
			"loadgen_requests_total",
			"Requests issued against the target API, by result.",
			[]string{"result"}, nil,
		),
		operations: prometheus.NewDesc(
			"loadgen_operations_total",
			"Top-level read and write operations performed by workers.",
			[]string{"kind"}, nil,
		),
		latencySum: prometheus.NewDesc(
			"loadgen_request_latency_seconds_sum",
			"Sum of request latencies in seconds.",
			nil, nil,
		),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.requests
	ch <- e.operations
	ch <- e.latencySum
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	s := e.collector.Counters()
	ch <- prometheus.MustNewConstMetric(e.requests, prometheus.CounterValue, float64(s.Successes), "success")
	ch <- prometheus.MustNewConstMetric(e.requests, prometheus.CounterValue, float64(s.Failures), "failure")
	ch <- prometheus.MustNewConstMetric(e.operations, prometheus.CounterValue, float64(s.Reads), OperationRead.String())
	ch <- prometheus.MustNewConstMetric(e.operations, prometheus.CounterValue, float64(s.Writes), OperationWrite.String())
	ch <- prometheus.MustNewConstMetric(e.latencySum, prometheus.CounterValue, s.TotalLatency.Seconds())
}

// Handler returns an HTTP handler serving the collector on its own registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewExporter(c))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
