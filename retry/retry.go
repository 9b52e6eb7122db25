// Package retry implements the client reconnect supervisor's fixed-interval
// retry policy: unlike exponential backoff, every retry waits the same
// configured interval, and the counter resets to zero once a reconnection
// attempt completes its QUIC transport handshake.
package retry

import (
	"context"
	"time"
)

// Clock is redeclared so tests can override it without waiting on a real
// timer.
type Clock struct {
	After func(d time.Duration) <-chan time.Time
}

var defaultClock = Clock{After: time.After}

// Handler tracks the reconnect attempt count against an optional maximum.
// The zero value has Interval == 0, meaning "do not retry".
type Handler struct {
	// Interval is the fixed wait between reconnect attempts. Zero disables
	// retrying entirely.
	Interval time.Duration
	// MaxRetries caps the number of reconnect attempts. Zero means
	// unlimited.
	MaxRetries uint

	clock   Clock
	retries uint
}

// NewHandler builds a Handler with the given policy.
func NewHandler(interval time.Duration, maxRetries uint) *Handler {
	return &Handler{Interval: interval, MaxRetries: maxRetries, clock: defaultClock}
}

// ShouldRetry reports whether another attempt is configured to run, and if
// so waits for Interval (or ctx cancellation) before returning. It returns
// false without waiting once no interval is configured or MaxRetries has
// been reached.
func (h *Handler) ShouldRetry(ctx context.Context) bool {
	if h.Interval <= 0 {
		return false
	}
	h.retries++
	if h.MaxRetries > 0 && h.retries > h.MaxRetries {
		return false
	}
	clock := h.clock
	if clock.After == nil {
		clock = defaultClock
	}
	select {
	case <-clock.After(h.Interval):
		return true
	case <-ctx.Done():
		return false
	}
}

// ResetOnSuccess clears the retry counter. The supervisor calls this once
// the reconnected engine's QUIC dial completes, before the Auth and
// RegisterRoute exchange.
func (h *Handler) ResetOnSuccess() {
	h.retries = 0
}

// Retries returns how many ShouldRetry calls have counted an attempt since
// the last reset, including the call that found MaxRetries exceeded.
func (h *Handler) Retries() uint {
	return h.retries
}
