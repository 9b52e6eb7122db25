// Package tunnelserver implements the server side of the reverse tunnel:
// a single public QUIC endpoint fanning into one handler per peer
// connection, each of which binds the peer's registered routes and bridges
// traffic on them back across that connection's substreams.
package tunnelserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/relaytun/relaytun/metrics"
	"github.com/relaytun/relaytun/route"
	"github.com/rs/zerolog"
)

// Config configures the top-level QUIC endpoint and the handshake policy
// applied to every peer that dials in.
type Config struct {
	Bind                 string
	Token                string
	TLSConfig            *tls.Config
	Routes               *route.ServerSet
	MaxConcurrentStreams int
	StreamWriteTimeout   time.Duration
	ShutdownGrace        time.Duration
}

// Server is the top-level reverse-tunnel listener.
type Server struct {
	cfg Config
	log zerolog.Logger
}

// New builds a Server from cfg.
func New(cfg Config, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, log: log}
}

// ListenAndServe binds the QUIC endpoint and accepts peer connections until
// ctx is canceled, at which point the listener is closed and already
// accepted peers are left to drain on their own shutdown tokens.
func (s *Server) ListenAndServe(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("resolving bind address: %w", err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("binding udp socket: %w", err)
	}

	transport := &quic.Transport{Conn: udpConn}
	ln, err := transport.Listen(s.cfg.TLSConfig, &quic.Config{
		HandshakeIdleTimeout: 5 * time.Second,
		MaxIdleTimeout:       5 * time.Second,
		KeepAlivePeriod:      3 * time.Second,
		MaxIncomingStreams:   int64(s.cfg.MaxConcurrentStreams),
	})
	if err != nil {
		udpConn.Close()
		return fmt.Errorf("starting quic listener: %w", err)
	}
	defer ln.Close()

	s.log.Info().Str("bind", ln.Addr().String()).Msg("reverse tunnel server listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accepting peer connection: %w", err)
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn quic.Connection) {
	metrics.PeerConnections.Inc()
	defer metrics.PeerConnections.Dec()

	h := NewHandler(conn, s.cfg.Routes, s.cfg.Token, s.cfg.StreamWriteTimeout, s.cfg.ShutdownGrace, &s.log)
	if err := h.Serve(ctx); err != nil {
		s.log.Error().Err(err).Msg("peer connection ended with error")
	}
}
