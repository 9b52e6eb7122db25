package tunnelserver

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/relaytun/relaytun/metrics"
	"github.com/relaytun/relaytun/protocol"
	"github.com/relaytun/relaytun/quicstream"
	"github.com/relaytun/relaytun/signal"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// tcpRoute listens on a bound public address and bridges every accepted
// connection to a fresh substream on the peer connection.
type tcpRoute struct {
	name         string
	ln           net.Listener
	conn         quic.Connection
	writeTimeout time.Duration
	log          zerolog.Logger
	done         chan struct{}
}

func newTCPRoute(name string, ln net.Listener, conn quic.Connection, writeTimeout time.Duration, log zerolog.Logger) *tcpRoute {
	return &tcpRoute{
		name:         name,
		ln:           ln,
		conn:         conn,
		writeTimeout: writeTimeout,
		log:          log.With().Str("route", name).Str("routeType", "tcp").Logger(),
		done:         make(chan struct{}),
	}
}

func (t *tcpRoute) Name() string          { return t.name }
func (t *tcpRoute) Done() <-chan struct{} { return t.done }

// Close unblocks the pending Accept call, ending Serve's loop.
func (t *tcpRoute) Close() error { return t.ln.Close() }

func (t *tcpRoute) Serve(ctx context.Context, shutdown *signal.Token) {
	defer close(t.done)
	t.log.Info().Str("bind", t.ln.Addr().String()).Msg("tcp route listening")

	go func() {
		<-shutdown.Done()
		t.ln.Close()
	}()

	for {
		accepted, err := t.ln.Accept()
		if err != nil {
			t.log.Debug().Err(err).Msg("tcp route accept loop stopping")
			return
		}
		go t.bridge(ctx, accepted)
	}
}

func (t *tcpRoute) bridge(ctx context.Context, accepted net.Conn) {
	defer accepted.Close()

	qs, err := t.conn.OpenStreamSync(ctx)
	if err != nil {
		t.log.Warn().Err(err).Msg("failed to open substream for accepted connection")
		return
	}
	stream := quicstream.New(qs, t.writeTimeout, &t.log)
	defer stream.Close()

	if err := protocol.WriteStreamStart(stream, t.name); err != nil {
		t.log.Warn().Err(err).Msg("failed to write stream preamble")
		return
	}
	metrics.TCPBridgesTotal.WithLabelValues(t.name).Inc()

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(stream, accepted)
		stream.CloseWrite()
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(accepted, stream)
		closeWrite(accepted)
		return err
	})
	if err := g.Wait(); err != nil {
		t.log.Debug().Err(err).Msg("tcp bridge ended")
	}
}
