package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestBuildRequestWithHeadersAndJSONBody(t *testing.T) {
	builder, err := NewRequestBuilder("http://example.com/api/v1/", map[string]string{
		"x-trace-id": "12345",
	})
	if err != nil {
		t.Fatalf("expected builder, got error: %v", err)
	}

	payload := map[string]interface{}{"user_id": "u1"}
	req, err := builder.Build(context.Background(), "post", "/files/f1/view", nil, payload)
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %s", req.Method)
	}
	if req.URL.String() != "http://example.com/api/v1/files/f1/view" {
		t.Fatalf("unexpected URL %s", req.URL.String())
	}
	if req.Header.Get("X-Trace-Id") != "12345" {
		t.Fatalf("expected X-Trace-Id header, got %q", req.Header.Get("X-Trace-Id"))
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected JSON content type, got %q", req.Header.Get("Content-Type"))
	}

	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(bodyBytes, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded["user_id"] != "u1" {
		t.Fatalf("unexpected body %s", bodyBytes)
	}
	if req.ContentLength != int64(len(bodyBytes)) {
		t.Fatalf("expected content length %d, got %d", len(bodyBytes), req.ContentLength)
	}

	if req.GetBody == nil {
		t.Fatalf("expected request to support body replay")
	}
	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("expected replay body, got error: %v", err)
	}
	replayBytes, _ := io.ReadAll(replay)
	if string(replayBytes) != string(bodyBytes) {
		t.Fatalf("expected replay body %q, got %q", bodyBytes, replayBytes)
	}
}

func TestBuildRequestWithQuery(t *testing.T) {
	builder, err := NewRequestBuilder("http://backend:8000/api/v1", nil)
	if err != nil {
		t.Fatalf("NewRequestBuilder error = %v", err)
	}
	req, err := builder.Build(context.Background(), http.MethodGet, "files", url.Values{
		"per_page": {"20"},
		"sort_by":  {"view_count"},
	}, nil)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if req.URL.Path != "/api/v1/files" {
		t.Errorf("path = %q, want /api/v1/files", req.URL.Path)
	}
	if got := req.URL.Query().Get("sort_by"); got != "view_count" {
		t.Errorf("sort_by = %q, want view_count", got)
	}
	if req.Body != nil && req.ContentLength != 0 {
		t.Errorf("GET without payload must not carry a body")
	}
	if req.Header.Get("Content-Type") != "" {
		t.Errorf("GET without payload must not set Content-Type")
	}
}

func TestRequestBuilderRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		headers map[string]string
	}{
		{"empty target", "", nil},
		{"relative target", "/api/v1", nil},
		{"empty header key", "http://example.com", map[string]string{"": "value"}},
		{"newline in key", "http://example.com", map[string]string{"Bad\nKey": "value"}},
		{"newline in value", "http://example.com", map[string]string{"X-Test": "bad\rvalue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRequestBuilder(tt.base, tt.headers); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestMethodFallbackAndVerbs(t *testing.T) {
	builder, err := NewRequestBuilder("http://example.com", nil)
	if err != nil {
		t.Fatalf("NewRequestBuilder error = %v", err)
	}

	req, err := builder.Build(context.Background(), "", "/files", nil, nil)
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if req.Method != http.MethodGet {
		t.Fatalf("expected method GET, got %s", req.Method)
	}

	for _, verb := range []string{"get", "post", "put"} {
		req, err := builder.Build(context.Background(), verb, "/files", nil, nil)
		if err != nil {
			t.Fatalf("Build(%s) error = %v", verb, err)
		}
		if req.Method == verb {
			t.Fatalf("expected %s to be upper-cased", verb)
		}
	}
}

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(timeout)
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}

	elapsed := time.Since(start)
	if elapsed < timeout {
		t.Fatalf("request returned too quickly: %s < %s", elapsed, timeout)
	}
	if elapsed > timeout*5 {
		t.Fatalf("request took too long: %s", elapsed)
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxIdleConns == 0 {
		t.Fatalf("expected transport to allow idle connections")
	}
}

func TestRequestBuilderWithAuthProvider(t *testing.T) {
	mockProvider := &mockAuthProvider{token: "test-auth-token"}

	builder, err := NewRequestBuilderWithAuth("https://api.example.com", nil, mockProvider)
	if err != nil {
		t.Fatalf("NewRequestBuilderWithAuth() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		req, err := builder.Build(context.Background(), http.MethodGet, "/users", nil, nil)
		if err != nil {
			t.Fatalf("Build() request %d error = %v", i, err)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer test-auth-token" {
			t.Errorf("Request %d Authorization header = %q", i, got)
		}
	}

	if mockProvider.tokenCalls != 3 {
		t.Errorf("Token() calls = %d, want 3", mockProvider.tokenCalls)
	}
}

func TestRequestBuilderAuthError(t *testing.T) {
	builder, err := NewRequestBuilderWithAuth("https://api.example.com", nil, &mockAuthProvider{tokenErr: errors.New("expired")})
	if err != nil {
		t.Fatalf("NewRequestBuilderWithAuth() error = %v", err)
	}
	if _, err := builder.Build(context.Background(), http.MethodGet, "/users", nil, nil); err == nil {
		t.Fatal("expected auth error to surface from Build")
	}
}

func TestSessionsUseSeparateTransports(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	a, err := NewSession(SessionOptions{BaseURL: server.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewSession error = %v", err)
	}
	b, err := NewSession(SessionOptions{BaseURL: server.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewSession error = %v", err)
	}
	if a.client.Transport == b.client.Transport {
		t.Fatal("sessions must not share a transport")
	}

	req, err := a.NewRequest(context.Background(), http.MethodGet, "/files", nil, nil)
	if err != nil {
		t.Fatalf("NewRequest error = %v", err)
	}
	resp, err := a.Do(req)
	if err != nil {
		t.Fatalf("Do error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close error = %v", err)
	}
	_ = b.Close()
}

// mockAuthProvider simulates an auth provider for testing
type mockAuthProvider struct {
	token      string
	tokenCalls int
	tokenErr   error
}

func (m *mockAuthProvider) Token(ctx context.Context) (string, error) {
	m.tokenCalls++
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return m.token, nil
}

func (m *mockAuthProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	token, err := m.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (m *mockAuthProvider) Close() error {
	return nil
}
