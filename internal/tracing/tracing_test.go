package tracing_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/figscale/loadgen/internal/config"
	"github.com/figscale/loadgen/internal/tracing"
)

func recordingTracer(t *testing.T) (*tracetest.SpanRecorder, trace.Tracer) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec, tp.Tracer("loadgen-test")
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestRequestSpanLifecycle(t *testing.T) {
	rec, tracer := recordingTracer(t)

	var traceparent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, span := tracing.StartRequestSpan(context.Background(), tracer, "view_file", http.MethodPost, "/files/f1/view")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+"/files/f1/view", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	tracing.InjectHTTPHeaders(ctx, req.Header)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	tracing.EndSpan(span, resp.StatusCode, errors.New("HTTP 503"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("got %d spans, want 1", len(ended))
	}
	got := ended[0]
	if got.Name() != "POST view_file" {
		t.Errorf("span name = %q, want POST view_file", got.Name())
	}
	if got.SpanKind() != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", got.SpanKind())
	}
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want error", got.Status().Code)
	}

	a := attrs(got)
	if a["http.request.method"].AsString() != http.MethodPost {
		t.Errorf("http.request.method = %v", a["http.request.method"])
	}
	if a["url.path"].AsString() != "/files/f1/view" {
		t.Errorf("url.path = %v", a["url.path"])
	}
	if a["loadgen.call"].AsString() != "view_file" {
		t.Errorf("loadgen.call = %v", a["loadgen.call"])
	}
	if a["http.response.status_code"].AsInt64() != http.StatusServiceUnavailable {
		t.Errorf("http.response.status_code = %v", a["http.response.status_code"])
	}

	traceID := got.SpanContext().TraceID().String()
	if !strings.Contains(traceparent, traceID) {
		t.Errorf("traceparent %q does not carry trace id %s", traceparent, traceID)
	}
}

func TestRequestSpanWithoutCallName(t *testing.T) {
	rec, tracer := recordingTracer(t)

	_, span := tracing.StartRequestSpan(context.Background(), tracer, "", http.MethodGet, "/users")
	tracing.EndSpan(span, http.StatusOK, nil)

	got := rec.Ended()[0]
	if got.Name() != "GET request" {
		t.Errorf("span name = %q, want GET request", got.Name())
	}
	if _, ok := attrs(got)["loadgen.call"]; ok {
		t.Error("loadgen.call should be omitted for unnamed calls")
	}
	if got.Status().Code != codes.Ok {
		t.Errorf("status = %v, want ok", got.Status().Code)
	}
}

func TestTransportFailureSpanHasNoStatusCode(t *testing.T) {
	rec, tracer := recordingTracer(t)

	_, span := tracing.StartRequestSpan(context.Background(), tracer, "list_files", http.MethodGet, "/files")
	tracing.EndSpan(span, 0, context.DeadlineExceeded)

	got := rec.Ended()[0]
	if _, ok := attrs(got)["http.response.status_code"]; ok {
		t.Error("status code attribute set without a response")
	}
	if got.Status().Description != context.DeadlineExceeded.Error() {
		t.Errorf("status description = %q", got.Status().Description)
	}
	if len(got.Events()) == 0 || got.Events()[0].Name != "exception" {
		t.Error("expected the error to be recorded as an exception event")
	}
}

func TestChainedCallsShareTrace(t *testing.T) {
	rec, tracer := recordingTracer(t)

	ctx, recipe := tracer.Start(context.Background(), "update_file")
	_, list := tracing.StartRequestSpan(ctx, tracer, "update_file", http.MethodGet, "/files")
	tracing.EndSpan(list, http.StatusOK, nil)
	_, put := tracing.StartRequestSpan(ctx, tracer, "update_file", http.MethodPut, "/files/f1")
	tracing.EndSpan(put, http.StatusOK, nil)
	recipe.End()

	ended := rec.Ended()
	if len(ended) != 3 {
		t.Fatalf("got %d spans, want 3", len(ended))
	}
	root := recipe.SpanContext()
	for _, s := range ended[:2] {
		if s.Parent().SpanID() != root.SpanID() {
			t.Errorf("span %q parent = %s, want %s", s.Name(), s.Parent().SpanID(), root.SpanID())
		}
		if s.SpanContext().TraceID() != root.TraceID() {
			t.Errorf("span %q left the recipe's trace", s.Name())
		}
	}
}

func TestInjectWithoutActiveSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	headers := make(http.Header)
	tracing.InjectHTTPHeaders(context.Background(), headers)
	if got := headers.Get("Traceparent"); got != "" {
		t.Errorf("traceparent = %q, want none outside a span", got)
	}
}

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.TracingConfig
		wantErr   string
		propagate bool
	}{
		{"disabled without endpoint", config.TracingConfig{SampleRate: 1}, "", false},
		{"grpc", config.TracingConfig{Endpoint: "localhost:4317", Protocol: "grpc", Insecure: true, SampleRate: 1}, "", true},
		{"http", config.TracingConfig{Endpoint: "localhost:4318", Protocol: "HTTP", Insecure: true, SampleRate: 0.25}, "", true},
		{"default protocol", config.TracingConfig{Endpoint: "localhost:4317", Insecure: true, ServiceName: "checkout-load"}, "", true},
		{"unknown protocol", config.TracingConfig{Endpoint: "localhost:4317", Protocol: "thrift"}, `unsupported OTLP protocol "thrift"`, false},
		{"negative sample rate", config.TracingConfig{Endpoint: "localhost:4317", SampleRate: -0.5}, "sample_rate", false},
		{"sample rate above one", config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1.5}, "sample_rate", false},
		{"NaN sample rate", config.TracingConfig{Endpoint: "localhost:4317", SampleRate: math.NaN()}, "sample_rate", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tracing.Init(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Init() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
			if p.ShouldPropagate() != tt.propagate {
				t.Errorf("ShouldPropagate() = %v, want %v", p.ShouldPropagate(), tt.propagate)
			}
		})
	}
}

func TestDisabledProviderTracesNothing(t *testing.T) {
	for _, p := range []*tracing.Provider{nil, {}} {
		if p.ShouldPropagate() {
			t.Error("ShouldPropagate() = true on a disabled provider")
		}
		_, span := tracing.StartRequestSpan(context.Background(), p.Tracer(), "list_users", http.MethodGet, "/users")
		tracing.EndSpan(span, http.StatusOK, nil)
		if span.SpanContext().IsValid() {
			t.Error("disabled provider produced a sampled span")
		}
		if err := p.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	}
}
