package metrics

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// Label returns the report label for an error kind.
func (k ErrorKind) Label() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorRemote:
		return "remote"
	case ErrorTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// FriendlyErrorName returns a short human label for a transport error, used in
// diagnostic lines where the raw error text is long.
func FriendlyErrorName(err error) string {
	if err == nil {
		return "Unknown error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Context deadline exceeded"
	}
	if errors.Is(err, context.Canceled) {
		return "Context canceled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "DNS lookup failed"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Request timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return "Connection refused"
		}
		return "Connection error"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection reset"):
		return "Connection reset"
	case strings.Contains(msg, "eof"):
		return "Unexpected EOF"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "Request URL error"
	}
	return "Transport error"
}
