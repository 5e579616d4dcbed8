package client

import (
	"context"
	"net/http"

	apperrors "github.com/elfernagomez/doya-management/pkg/errors"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback is a fallback function for the platform clients' circuit
// breakers. When the circuit is open, it returns a structured error with a
// retry hint instead of letting the raw ErrCircuitOpen propagate.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("platform is temporarily unavailable, please retry after 30 seconds")
}
