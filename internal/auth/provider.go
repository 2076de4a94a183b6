// Package auth supplies credentials for requests sent to the API under test.
package auth

import (
	"context"
	"net/http"
)

// Provider obtains a token and injects it into outgoing requests. It is
// shared by every worker session, so implementations must be safe for
// concurrent use.
type Provider interface {
	Token(ctx context.Context) (string, error)
	InjectHeader(ctx context.Context, req *http.Request) error
	Close() error
}

// FromToken returns a static bearer provider for token, or nil when token is
// empty and requests should go out unauthenticated.
func FromToken(token string) (Provider, error) {
	if token == "" {
		return nil, nil
	}
	return NewStaticTokenProvider(token)
}
