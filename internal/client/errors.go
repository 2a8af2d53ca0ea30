package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/pulseform/servicecore/internal/infrastructure/resilience"
)

var (
	// ErrTransport is a network-level failure: connection refused, DNS
	// failure, connection reset.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout is a per-attempt timeout.
	ErrTimeout = errors.New("attempt timed out")

	// ErrDownstreamRejected is a well-formed non-2xx response.
	ErrDownstreamRejected = errors.New("downstream rejected request")
)

// StatusError carries a non-2xx downstream response.
type StatusError struct {
	Dependency string
	Status     int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Dependency, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrDownstreamRejected
}

// IsUnavailable reports whether err represents a dependency outage
// (circuit open, timeout, transport failure, or a 5xx response) rather
// than a problem with the request itself. Boundaries use this to return
// "temporarily unavailable" instead of a permanent rejection.
func IsUnavailable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrTransport) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status >= 500
}

// countsAsBreakerFailure reports whether a final call outcome signals
// dependency unhealthiness. 4xx responses indicate a malformed caller
// request, not a sick dependency.
func countsAsBreakerFailure(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status >= 500
}

// isTimeoutErr classifies a raw transport error as a timeout.
func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isPreDispatch reports whether a raw transport error clearly occurred
// before the request reached the dependency, making it safe to retry
// even for non-idempotent methods.
func isPreDispatch(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// outcomeLabel maps a final call outcome to a metrics label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	default:
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			if statusErr.Status >= 500 {
				return "server_error"
			}
			return "rejected"
		}
		return "error"
	}
}
