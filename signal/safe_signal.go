// Package signal provides a one-shot broadcast primitive used as the
// shutdown token threaded through a peer connection's subsystem tree (the
// connection handler, the uni-stream watchdog, and every route worker).
// Requesting shutdown closes the channel returned by Done, so every select
// that includes it resolves promptly and exactly once.
package signal

import "sync"

// Token is a one-time shutdown signal shared by every task spawned for a
// single peer connection.
type Token struct {
	ch   chan struct{}
	once sync.Once
}

// NewToken creates a Token in the not-yet-shut-down state.
func NewToken() *Token {
	return &Token{ch: make(chan struct{})}
}

// Shutdown requests shutdown. It is safe to call from multiple goroutines
// and multiple times; only the first call has an effect.
func (t *Token) Shutdown() {
	t.once.Do(func() {
		close(t.ch)
	})
}

// Done returns a channel that is closed once Shutdown has been called.
// Include it as an arm of every long-running select so cancellation is
// cooperative rather than relying on dropped handles alone.
func (t *Token) Done() <-chan struct{} {
	return t.ch
}
