package tunnelclient

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/relaytun/relaytun/route"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// TestSupervisorGivesUpAfterMaxRetries points the engine at a port nothing
// is listening on, so every dial fails immediately, and checks the
// supervisor stops after the configured number of retries instead of
// looping forever.
func TestSupervisorGivesUpAfterMaxRetries(t *testing.T) {
	clientSet, err := route.NewClientSet(nil)
	require.NoError(t, err)

	cfg := Config{
		Remote:               "127.0.0.1:1", // nothing listens on port 1
		Token:                "secret",
		TLSConfig:            &tls.Config{InsecureSkipVerify: true},
		Routes:               clientSet,
		MaxConcurrentStreams: 10,
	}

	sup := NewSupervisor(cfg, 10*time.Millisecond, 2, zerolog.Nop())

	// Generous: a dial against a port with nothing listening usually fails
	// fast (ICMP port-unreachable on loopback), but give it room up to the
	// engine's own handshake timeout in case it doesn't.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	err = sup.Run(ctx)
	require.Error(t, err)
	// Two retries run; the third ShouldRetry call finds the max exceeded
	// and is counted too.
	require.EqualValues(t, 3, sup.retry.Retries())
}

// TestSupervisorStopsOnContextCancel checks that a canceled context ends
// the loop cleanly with a nil error even mid-retry-wait.
func TestSupervisorStopsOnContextCancel(t *testing.T) {
	clientSet, err := route.NewClientSet(nil)
	require.NoError(t, err)

	cfg := Config{
		Remote:               "127.0.0.1:1",
		Token:                "secret",
		TLSConfig:            &tls.Config{InsecureSkipVerify: true},
		Routes:               clientSet,
		MaxConcurrentStreams: 10,
	}
	sup := NewSupervisor(cfg, time.Hour, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after context cancel")
	}
}
