package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// SessionOptions configures a worker session.
type SessionOptions struct {
	BaseURL string
	Headers map[string]string
	Timeout time.Duration
	Auth    AuthProvider
}

// Session is one simulated user's connection state: a request builder and an
// HTTP client with its own transport, so connection pools are never shared
// between workers.
type Session struct {
	builder *RequestBuilder
	client  *http.Client

	closeOnce sync.Once
}

func NewSession(opts SessionOptions) (*Session, error) {
	var (
		builder *RequestBuilder
		err     error
	)
	if opts.Auth != nil {
		builder, err = NewRequestBuilderWithAuth(opts.BaseURL, opts.Headers, opts.Auth)
	} else {
		builder, err = NewRequestBuilder(opts.BaseURL, opts.Headers)
	}
	if err != nil {
		return nil, err
	}
	return &Session{
		builder: builder,
		client:  NewClient(opts.Timeout),
	}, nil
}

// NewRequest builds a request against the session's base URL.
func (s *Session) NewRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) (*http.Request, error) {
	if s == nil {
		return nil, errors.New("session cannot be nil")
	}
	return s.builder.Build(ctx, method, path, query, payload)
}

// Do sends the request on the session's own transport.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

// Close drops the session's idle connections. The auth provider is shared
// across sessions and is closed by its owner.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(s.client.CloseIdleConnections)
	return nil
}
