// Package executor issues single calls against the API under test, times
// them, classifies the outcome and records it into the shared statistics.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/figscale/loadgen/internal/extractor"
	"github.com/figscale/loadgen/internal/metrics"
	"github.com/figscale/loadgen/internal/tracing"
)

const (
	// DefaultErrorBodyLimit is the number of characters of a failed
	// response's body kept for diagnostics.
	DefaultErrorBodyLimit = 200

	maxBodyReadSize = 1024 * 1024
	utf8MaxBytes    = 4
	requestIDHeader = "X-Request-ID"
)

// Call describes one HTTP call relative to the API base URL.
type Call struct {
	Name   string // logical name used in logs and spans, e.g. "list_files"
	Method string
	Path   string
	Query  url.Values
	JSON   interface{} // encoded as the request body when non-nil
}

// Session builds and sends requests for one worker.
type Session interface {
	NewRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

// Options configures an Executor.
type Options struct {
	Session   Session
	Stats     *metrics.Collector
	Tracer    trace.Tracer
	Logger    *zap.Logger
	LogErrors bool

	// Limiter caps the request rate across every executor sharing it. Nil means unlimited.
	Limiter *rate.Limiter

	// Propagate injects W3C trace headers into outgoing requests.
	Propagate bool

	// ErrorBodyLimit is the number of body characters kept on failures; 0
	// keeps none and a negative value selects DefaultErrorBodyLimit.
	ErrorBodyLimit int
}

// Executor is owned by a single worker; the collector and limiter it writes
// to are shared.
type Executor struct {
	session   Session
	stats     *metrics.Collector
	limiter   *rate.Limiter
	tracer    trace.Tracer
	propagate bool
	bodyLimit int
	logErrors bool
	logger    *zap.Logger
}

func New(opts Options) (*Executor, error) {
	if opts.Session == nil {
		return nil, errors.New("executor: session is required")
	}
	if opts.Stats == nil {
		return nil, errors.New("executor: statistics collector is required")
	}
	e := &Executor{
		session:   opts.Session,
		stats:     opts.Stats,
		limiter:   opts.Limiter,
		tracer:    opts.Tracer,
		propagate: opts.Propagate,
		bodyLimit: opts.ErrorBodyLimit,
		logErrors: opts.LogErrors,
		logger:    opts.Logger,
	}
	if e.tracer == nil {
		e.tracer = (*tracing.Provider)(nil).Tracer()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.bodyLimit < 0 {
		e.bodyLimit = DefaultErrorBodyLimit
	}
	return e, nil
}

// NewLimiter returns a limiter allowing rps requests per second with a burst
// of one second's worth, or nil for rps <= 0.
func NewLimiter(rps int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), rps)
}

// Execute performs the call and records exactly one outcome for every call
// that reaches the transport. The body is returned only for status < 400.
//
// When ctx is cancelled while waiting on the rate limiter the call is never
// sent and nothing is recorded; the returned outcome carries ctx's error.
func (e *Executor) Execute(ctx context.Context, call Call) ([]byte, metrics.Outcome) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, metrics.Outcome{Kind: metrics.ErrorTransport, Err: err}
		}
	}

	ctx, span := tracing.StartRequestSpan(ctx, e.tracer, call.Name, call.Method, call.Path)

	req, err := e.session.NewRequest(ctx, call.Method, call.Path, call.Query, call.JSON)
	if err != nil {
		outcome := metrics.Outcome{Kind: metrics.ErrorTransport, Err: fmt.Errorf("build request: %w", err)}
		e.finish(span, call, outcome)
		return nil, outcome
	}
	req.Header.Set(requestIDHeader, uuid.NewString())
	if e.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := time.Now()
	resp, err := e.session.Do(req)
	latency := time.Since(start)
	if err != nil {
		outcome := metrics.Outcome{Latency: latency, Kind: metrics.ErrorTransport, Err: err}
		e.finish(span, call, outcome)
		return nil, outcome
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, int64(e.bodyLimit)*utf8MaxBytes))
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyReadSize))
		outcome := metrics.Outcome{
			Latency:    latency,
			StatusCode: resp.StatusCode,
			Kind:       metrics.ErrorRemote,
			Err:        &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(snippet), e.bodyLimit)},
		}
		e.finish(span, call, outcome)
		return nil, outcome
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize+1))
	if len(body) > maxBodyReadSize {
		body = body[:maxBodyReadSize]
		e.logger.Debug("response body truncated",
			zap.String("call", call.Name),
			zap.String("path", call.Path),
			zap.Int("limit_bytes", maxBodyReadSize),
		)
	}
	if err != nil {
		outcome := metrics.Outcome{
			Latency:    latency,
			StatusCode: resp.StatusCode,
			Kind:       metrics.ErrorTransport,
			Err:        fmt.Errorf("read body: %w", err),
		}
		e.finish(span, call, outcome)
		return nil, outcome
	}

	outcome := metrics.Outcome{Latency: latency, StatusCode: resp.StatusCode}
	e.finish(span, call, outcome)
	return body, outcome
}

func (e *Executor) finish(span trace.Span, call Call, o metrics.Outcome) {
	e.stats.RecordRequest(o)
	tracing.EndSpan(span, o.StatusCode, o.Err)
	if o.Success() || !e.logErrors {
		return
	}

	fields := []zap.Field{
		zap.String("call", call.Name),
		zap.String("method", call.Method),
		zap.String("path", call.Path),
		zap.Duration("latency", o.Latency),
	}
	var httpErr *HTTPError
	if errors.As(o.Err, &httpErr) {
		fields = append(fields, zap.Int("status", httpErr.StatusCode), zap.String("body", httpErr.Body))
		if msg, ok := extractor.Lookup([]byte(httpErr.Body), "message"); ok && msg != "" {
			fields = append(fields, zap.String("message", msg))
		}
		e.logger.Warn("server error", fields...)
		return
	}
	if o.StatusCode > 0 {
		fields = append(fields, zap.Int("status", o.StatusCode))
	}
	fields = append(fields, zap.String("error_class", metrics.FriendlyErrorName(o.Err)), zap.Error(o.Err))
	e.logger.Warn("request error", fields...)
}
