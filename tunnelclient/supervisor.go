package tunnelclient

import (
	"context"
	"time"

	"github.com/relaytun/relaytun/retry"
	"github.com/rs/zerolog"
)

// Supervisor redials the server with a fixed-interval retry policy whenever
// an Engine run ends, resetting the retry counter each time a new
// connection is established.
type Supervisor struct {
	engine *Engine
	retry  *retry.Handler
	log    zerolog.Logger
}

// NewSupervisor builds a Supervisor wrapping an Engine built from cfg.
// retryInterval <= 0 disables reconnection entirely; maxRetries == 0 means
// unlimited attempts.
func NewSupervisor(cfg Config, retryInterval time.Duration, maxRetries uint, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		engine: New(cfg, log),
		retry:  retry.NewHandler(retryInterval, maxRetries),
		log:    log,
	}
}

// Run drives reconnect-on-failure until ctx is canceled or the retry policy
// gives up, returning the last connection error (nil if ctx ended things
// cleanly).
func (s *Supervisor) Run(ctx context.Context) error {
	var lastErr error
	for {
		err := s.engine.Run(ctx, s.retry.ResetOnSuccess)
		if ctx.Err() != nil {
			return nil
		}
		lastErr = err
		if err != nil {
			s.log.Warn().Err(err).Msg("tunnel connection ended, considering reconnect")
		}
		if !s.retry.ShouldRetry(ctx) {
			if ctx.Err() != nil {
				return nil
			}
			return lastErr
		}
	}
}
