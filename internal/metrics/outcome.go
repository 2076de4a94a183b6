package metrics

import "time"

// ErrorKind classifies why a single request failed.
type ErrorKind int

const (
	// ErrorNone marks a successful request.
	ErrorNone ErrorKind = iota
	// ErrorRemote is an HTTP response with status >= 400.
	ErrorRemote
	// ErrorTransport covers timeouts, resets, DNS failures and unreadable bodies.
	ErrorTransport
)

// Outcome is the result of one request as seen by the statistics aggregator.
type Outcome struct {
	Latency    time.Duration
	StatusCode int // 0 when no response was received
	Kind       ErrorKind
	Err        error
}

// Success reports whether the request counts as successful.
func (o Outcome) Success() bool {
	return o.Kind == ErrorNone
}

// OperationKind distinguishes the two top-level operation types a worker issues.
type OperationKind int

const (
	OperationRead OperationKind = iota
	OperationWrite
)

func (k OperationKind) String() string {
	if k == OperationWrite {
		return "write"
	}
	return "read"
}
