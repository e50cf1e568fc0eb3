// Package resilience guards outgoing backend calls with a circuit breaker.
package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker/v2"

	"lexdesk/internal/logging"
)

// errServerFailure marks a 5xx answer as a breaker failure while the response
// itself is still handed to the caller.
var errServerFailure = errors.New("backend answered with a server error")

// Config tunes a breaker. Zero values fall back to 5 failures and 30 seconds.
type Config struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// BreakerTransport is an http.RoundTripper that stops calling an unhealthy
// backend. Transport errors and 5xx answers count as failures; any other
// status, 401 included, is a success. It never retries.
type BreakerTransport struct {
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

// NewBreakerTransport wraps base (http.DefaultTransport when nil).
func NewBreakerTransport(name string, base http.RoundTripper, cfg Config, logger *log.Logger) *BreakerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = logging.Discard()
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit_breaker_state_change", "backend", name, "from", from.String(), "to", to.String())
		},
	})
	return &BreakerTransport{base: base, cb: cb}
}

// RoundTrip implements http.RoundTripper.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.cb.Execute(func() (*http.Response, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerFailure
		}
		return resp, nil
	})
	if errors.Is(err, errServerFailure) {
		return resp, nil
	}
	return resp, err
}

// State reports the breaker state ("closed", "open" or "half-open").
func (t *BreakerTransport) State() string {
	return t.cb.State().String()
}

// IsOpen reports whether err was produced by an open breaker.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
