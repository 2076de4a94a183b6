package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// StaticTokenProvider sends a pre-issued bearer token with every request.
type StaticTokenProvider struct {
	header string
}

const bearerScheme = "Bearer"

// NewStaticTokenProvider creates a provider for token. A leading "Bearer"
// scheme, in any case, is accepted and not doubled.
func NewStaticTokenProvider(token string) (*StaticTokenProvider, error) {
	token = stripScheme(strings.TrimSpace(token))
	if token == "" {
		return nil, errors.New("auth token cannot be empty")
	}
	if strings.ContainsAny(token, "\r\n") {
		return nil, errors.New("auth token must not contain line breaks")
	}
	return &StaticTokenProvider{header: bearerScheme + " " + token}, nil
}

// stripScheme drops a leading bearer scheme. The scheme only counts as a
// whole word, so a token such as "Bearerish" is left alone.
func stripScheme(token string) string {
	if len(token) < len(bearerScheme) || !strings.EqualFold(token[:len(bearerScheme)], bearerScheme) {
		return token
	}
	rest := token[len(bearerScheme):]
	if rest == "" {
		return ""
	}
	if rest[0] != ' ' && rest[0] != '\t' {
		return token
	}
	return strings.TrimSpace(rest)
}

// Token returns the token without the scheme prefix.
func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return strings.TrimPrefix(p.header, bearerScheme+" "), nil
}

// InjectHeader sets the Authorization header.
func (p *StaticTokenProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	req.Header.Set("Authorization", p.header)
	return nil
}

func (p *StaticTokenProvider) Close() error {
	return nil
}
