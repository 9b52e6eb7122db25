// Package tunnelclient implements the client side of the reverse tunnel: it
// dials the server once per connection attempt, runs the Auth/RegisterRoute
// handshake, then bridges every data substream the server opens to the
// locally configured backend for that route. Package supervisor.go layers
// fixed-interval reconnection on top of one connection attempt.
package tunnelclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/relaytun/relaytun/frame"
	"github.com/relaytun/relaytun/protocol"
	"github.com/relaytun/relaytun/quicstream"
	"github.com/relaytun/relaytun/route"
	"github.com/rs/zerolog"
)

// Config configures one connection attempt: where to dial, how to
// authenticate, and which routes to register.
type Config struct {
	Remote               string
	Token                string
	TLSConfig            *tls.Config
	Routes               *route.ClientSet
	MaxConcurrentStreams int
	StreamWriteTimeout   time.Duration
}

// Engine owns a single QUIC connection attempt's lifecycle.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// New builds an Engine from cfg.
func New(cfg Config, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// Run dials the server, performs the handshake, then serves inbound data
// substreams until the connection fails or ctx is canceled. onConnected, if
// non-nil, is invoked once the QUIC transport handshake completes -- before
// the Auth/RegisterRoute exchange -- so a caller can reset a reconnect
// counter as soon as the network path is proven to work again.
func (e *Engine) Run(ctx context.Context, onConnected func()) error {
	conn, err := quic.DialAddr(ctx, e.cfg.Remote, e.cfg.TLSConfig, &quic.Config{
		HandshakeIdleTimeout: 5 * time.Second,
		MaxIdleTimeout:       5 * time.Second,
		KeepAlivePeriod:      3 * time.Second,
		MaxIncomingStreams:   int64(e.cfg.MaxConcurrentStreams),
	})
	if err != nil {
		return fmt.Errorf("dialing %s: %w", e.cfg.Remote, err)
	}
	defer conn.CloseWithError(protocol.AppErrorShutdown, "")

	if onConnected != nil {
		onConnected()
	}

	if err := e.handshake(ctx, conn); err != nil {
		return err
	}
	e.log.Info().Str("remote", e.cfg.Remote).Msg("tunnel established")

	for {
		qs, err := conn.AcceptStream(ctx)
		if err != nil {
			return fmt.Errorf("accepting data substream: %w", err)
		}
		go e.dispatch(ctx, qs)
	}
}

func (e *Engine) handshake(ctx context.Context, conn quic.Connection) error {
	hsStream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("opening handshake substream: %w", err)
	}
	hs := quicstream.New(hsStream, e.cfg.StreamWriteTimeout, &e.log)
	defer hs.Close()

	if err := protocol.WriteAuth(hs, e.cfg.Token); err != nil {
		return fmt.Errorf("writing auth: %w", err)
	}

	r := bufio.NewReader(hs)
	ack, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("reading auth ack: %w", err)
	}
	if ack != protocol.AuthAckByte {
		return fmt.Errorf("unexpected auth ack byte %#x", ack)
	}

	ordered := e.cfg.Routes.Ordered()
	entries := make([]frame.RegisterRoute, len(ordered))
	for i, rt := range ordered {
		entries[i] = frame.RegisterRoute{Name: rt.Name, Type: rt.Type}
	}
	if err := protocol.WriteRegisterRoutes(hs, entries); err != nil {
		return fmt.Errorf("writing route registration: %w", err)
	}

	res, err := protocol.ReadResult(r)
	if err != nil {
		return fmt.Errorf("reading registration result: %w", err)
	}
	if res.Kind != frame.ResultOk {
		return res
	}
	return nil
}

func (e *Engine) dispatch(ctx context.Context, qs quic.Stream) {
	stream := quicstream.New(qs, e.cfg.StreamWriteTimeout, &e.log)
	r := bufio.NewReader(stream)

	start, err := protocol.ReadStreamStart(r)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to read stream preamble")
		stream.Close()
		return
	}
	rt, ok := e.cfg.Routes.Lookup(start.RouteName)
	if !ok {
		e.log.Warn().Str("route", start.RouteName).Msg("received stream for unregistered route")
		stream.Close()
		return
	}

	switch rt.Type {
	case route.TCP:
		bridgeTCP(stream, r, rt, &e.log)
	case route.UDP:
		bridgeUDP(stream, r, rt, &e.log)
	default:
		e.log.Error().Str("route", rt.Name).Msg("registered route has unknown type")
		stream.Close()
	}
}
