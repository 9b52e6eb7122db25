package tunnelserver

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/relaytun/relaytun/frame"
	"github.com/relaytun/relaytun/metrics"
	"github.com/relaytun/relaytun/protocol"
	"github.com/relaytun/relaytun/quicstream"
	"github.com/relaytun/relaytun/route"
	"github.com/relaytun/relaytun/signal"
	"github.com/rs/zerolog"
)

const (
	defaultWriteTimeout  = 5 * time.Second
	defaultShutdownGrace = 3 * time.Second
)

var errAuthFailed = errors.New("tunnelserver: auth token mismatch")

// Handler drives a single peer connection from handshake through teardown:
// authenticate, register routes in order, then run until shutdown.
type Handler struct {
	conn          quic.Connection
	routes        *route.ServerSet
	token         string
	writeTimeout  time.Duration
	shutdownGrace time.Duration
	log           zerolog.Logger
}

// NewHandler builds a Handler for an already-established QUIC connection.
func NewHandler(conn quic.Connection, routes *route.ServerSet, token string, writeTimeout, shutdownGrace time.Duration, log *zerolog.Logger) *Handler {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if shutdownGrace <= 0 {
		shutdownGrace = defaultShutdownGrace
	}
	return &Handler{
		conn:          conn,
		routes:        routes,
		token:         token,
		writeTimeout:  writeTimeout,
		shutdownGrace: shutdownGrace,
		log:           log.With().Str("peer", conn.RemoteAddr().String()).Logger(),
	}
}

// Serve runs the full handshake-then-serve lifecycle for one peer, blocking
// until the connection is torn down. It returns once every route worker it
// spawned has stopped or the shutdown grace period has elapsed.
func (h *Handler) Serve(ctx context.Context) error {
	hsStream, err := h.conn.AcceptStream(ctx)
	if err != nil {
		return fmt.Errorf("accepting handshake substream: %w", err)
	}
	hs := quicstream.New(hsStream, h.writeTimeout, &h.log)
	defer hs.Close()
	r := bufio.NewReader(hs)

	if err := h.authenticate(r, hs); err != nil {
		return err
	}

	shutdown := signal.NewToken()
	go func() {
		select {
		case <-ctx.Done():
			shutdown.Shutdown()
		case <-shutdown.Done():
		}
	}()
	go h.watchIdle(ctx, shutdown)

	entries, err := protocol.ReadRegisterRoutes(r)
	if err != nil {
		shutdown.Shutdown()
		return fmt.Errorf("reading route registration: %w", err)
	}

	bound, bindErr := h.registerRoutes(ctx, entries, shutdown)
	if bindErr != nil {
		if err := protocol.WriteResult(hs, bindErr.result); err != nil {
			h.log.Error().Err(err).Msg("failed to write registration failure result")
		}
		hs.CloseWrite()
		shutdown.Shutdown()
		h.stopRoutes(bound)
		return bindErr
	}

	if err := protocol.WriteResult(hs, frame.OkRegisterRouteRes()); err != nil {
		shutdown.Shutdown()
		h.stopRoutes(bound)
		return fmt.Errorf("writing registration success result: %w", err)
	}
	hs.CloseWrite()
	h.log.Info().Int("routes", len(bound)).Msg("peer registered routes")

	<-shutdown.Done()
	h.stopRoutes(bound)
	h.log.Info().Msg("peer connection closed")
	return nil
}

func (h *Handler) authenticate(r *bufio.Reader, hs *quicstream.Stream) error {
	auth, err := protocol.ReadAuth(r)
	if err != nil {
		h.conn.CloseWithError(protocol.AppErrorAuthFailed, "")
		return fmt.Errorf("reading auth: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(auth.Token), []byte(h.token)) != 1 {
		metrics.AuthFailuresTotal.Inc()
		h.conn.CloseWithError(protocol.AppErrorAuthFailed, "")
		return errAuthFailed
	}
	if _, err := hs.Write([]byte{protocol.AuthAckByte}); err != nil {
		return fmt.Errorf("writing auth ack: %w", err)
	}
	return nil
}

// watchIdle accepts (and discards) uni streams for the lifetime of the
// connection. The client never opens one in normal operation; their only
// purpose is to surface the connection's idle timeout to AcceptUniStream so
// this handler notices a dead link promptly instead of waiting on traffic.
func (h *Handler) watchIdle(ctx context.Context, shutdown *signal.Token) {
	for {
		_, err := h.conn.AcceptUniStream(ctx)
		if err != nil {
			if isTimeout(err) {
				h.log.Warn().Msg("peer connection idle timed out")
				shutdown.Shutdown()
			}
			return
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// bindError reports the RegisterRouteRes that should be sent back to the
// peer after a registration attempt failed partway through the list.
type bindError struct {
	result frame.RegisterRouteRes
}

func (e *bindError) Error() string { return e.result.Error() }

// registerRoutes binds each entry's listener in order, stopping at the
// first failure. Already-bound routes from this same attempt are returned
// to the caller so they can be torn down; routes bound are not yet Serve'd
// by the caller -- registerRoutes starts each worker itself.
func (h *Handler) registerRoutes(ctx context.Context, entries []frame.RegisterRoute, shutdown *signal.Token) ([]routeWorker, *bindError) {
	var bound []routeWorker
	for _, entry := range entries {
		rt, ok := h.routes.Lookup(entry.Name, entry.Type)
		if !ok {
			return bound, &bindError{frame.ErrRegisterRouteRes(frame.ResultRouteNotFound, entry.Name, "")}
		}
		worker, err := h.bindRoute(rt)
		if err != nil {
			kind, reason := classifyBindError(err)
			metrics.RouteBindFailuresTotal.WithLabelValues(kindLabel(kind)).Inc()
			return bound, &bindError{frame.ErrRegisterRouteRes(kind, entry.Name, reason)}
		}
		bound = append(bound, worker)
		go worker.Serve(ctx, shutdown)
	}
	return bound, nil
}

func classifyBindError(err error) (frame.ResultKind, string) {
	if errors.Is(err, syscall.EADDRINUSE) {
		return frame.ResultRepeated, ""
	}
	return frame.ResultOther, err.Error()
}

func kindLabel(k frame.ResultKind) string {
	switch k {
	case frame.ResultRepeated:
		return "repeated"
	case frame.ResultRouteNotFound:
		return "route_not_found"
	default:
		return "other"
	}
}

func (h *Handler) bindRoute(rt route.Server) (routeWorker, error) {
	switch rt.Type {
	case route.TCP:
		ln, err := net.Listen("tcp", rt.Bind)
		if err != nil {
			return nil, err
		}
		return newTCPRoute(rt.Name, ln, h.conn, h.writeTimeout, h.log), nil
	case route.UDP:
		udpAddr, err := net.ResolveUDPAddr("udp", rt.Bind)
		if err != nil {
			return nil, err
		}
		socket, err := net.ListenUDP("udp", udpAddr)
		if err != nil {
			return nil, err
		}
		return newUDPRoute(rt.Name, socket, h.conn, rt.BufferSize(), h.writeTimeout, h.log), nil
	default:
		return nil, fmt.Errorf("unknown route type %v", rt.Type)
	}
}

// stopRoutes closes every worker's listener/socket, unblocking its Serve
// loop, then waits up to the handler's shutdown grace for all of them to
// report done.
func (h *Handler) stopRoutes(workers []routeWorker) {
	for _, w := range workers {
		w.Close()
	}
	deadline, cancel := context.WithTimeout(context.Background(), h.shutdownGrace)
	defer cancel()
	for _, w := range workers {
		select {
		case <-w.Done():
		case <-deadline.Done():
			h.log.Warn().Str("route", w.Name()).Msg("route worker did not stop within shutdown grace period")
		}
	}
}
