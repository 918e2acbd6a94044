package routing

import (
	"context"
	"errors"
	"fmt"
)

// Routing failures. Every provider reports exactly one of these (or *HTTPError),
// so callers can tell an unreachable service from a bad answer.
var (
	ErrNetworkUnavailable = errors.New("routing service unreachable")
	ErrMalformedResponse  = errors.New("routing service returned a malformed response")
	ErrCancelled          = errors.New("route request cancelled")
	ErrInvalidEndpoint    = errors.New("invalid route endpoint")
)

// HTTPError is returned when the routing service answers with a non-success status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("routing service returned status %d", e.Status)
	}

	return fmt.Sprintf("routing service returned status %d: %s", e.Status, e.Body)
}

// StatusCode extracts the upstream status from err, if it carries one.
func StatusCode(err error) (int, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status, true
	}

	return 0, false
}

// classifyTransportError maps a failed round trip onto the routing error taxonomy.
// Timeouts, DNS and connection failures are all reported as ErrNetworkUnavailable;
// a cancelled caller context always wins over the underlying transport error.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	return fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
}

// outcome returns a low-cardinality label describing err for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrNetworkUnavailable):
		return "network"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrInvalidEndpoint):
		return "invalid"
	}

	if _, ok := StatusCode(err); ok {
		return "http"
	}

	return "error"
}
