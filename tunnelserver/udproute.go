package tunnelserver

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/relaytun/relaytun/buffer"
	"github.com/relaytun/relaytun/frame"
	"github.com/relaytun/relaytun/metrics"
	"github.com/relaytun/relaytun/protocol"
	"github.com/relaytun/relaytun/quicstream"
	"github.com/relaytun/relaytun/signal"
	"github.com/rs/zerolog"
)

// evictionQueueSize bounds the inbound-task-to-main-loop eviction channel.
// Losing an eviction notice is harmless: a send on a dead flow's substream
// will itself fail and evict the entry on the next datagram.
const evictionQueueSize = 5

// udpDatagram is one packet read off the public socket, still holding its
// pool-allocated backing buffer so the main loop can return it once done.
type udpDatagram struct {
	addr *net.UDPAddr
	buf  []byte
	n    int
}

func (d udpDatagram) payload() []byte { return d.buf[:d.n] }

// udpRoute multiplexes one UDP socket over many QUIC substreams, one per
// source address ("flow"). A flow's substream is opened lazily on its first
// datagram and torn down the moment either side errors.
type udpRoute struct {
	name         string
	socket       *net.UDPConn
	conn         quic.Connection
	bufPool      *buffer.Pool
	bufferSize   int
	writeTimeout time.Duration
	log          zerolog.Logger
	done         chan struct{}
}

func newUDPRoute(name string, socket *net.UDPConn, conn quic.Connection, bufferSize int, writeTimeout time.Duration, log zerolog.Logger) *udpRoute {
	return &udpRoute{
		name:         name,
		socket:       socket,
		conn:         conn,
		bufPool:      buffer.NewPool(bufferSize),
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
		log:          log.With().Str("route", name).Str("routeType", "udp").Logger(),
		done:         make(chan struct{}),
	}
}

func (u *udpRoute) Name() string          { return u.name }
func (u *udpRoute) Done() <-chan struct{} { return u.done }

// Close unblocks the pending ReadFromUDP call in the receive loop.
func (u *udpRoute) Close() error { return u.socket.Close() }

func (u *udpRoute) Serve(ctx context.Context, shutdown *signal.Token) {
	defer close(u.done)
	u.log.Info().Str("bind", u.socket.LocalAddr().String()).Msg("udp route listening")

	flows := make(map[string]*quicstream.Stream)
	evictCh := make(chan string, evictionQueueSize)
	datagramCh := make(chan udpDatagram)
	recvDone := make(chan struct{})

	go u.recvLoop(datagramCh, recvDone, shutdown)

loop:
	for {
		// Drain any eviction notices already queued before considering a new
		// datagram, so a flow that just failed is never written to again.
		for drained := false; !drained; {
			select {
			case addr := <-evictCh:
				u.evict(flows, addr)
			default:
				drained = true
			}
		}

		select {
		case addr := <-evictCh:
			u.evict(flows, addr)
		case dg := <-datagramCh:
			u.handleDatagram(ctx, flows, evictCh, shutdown, dg)
		case <-shutdown.Done():
			break loop
		}
	}

	u.socket.Close()
	<-recvDone
	for addr, stream := range flows {
		stream.Close()
		delete(flows, addr)
	}
	metrics.UDPFlowTableSize.WithLabelValues(u.name).Set(0)
}

// recvLoop owns the only reads from the public socket. It hands each
// datagram, still in its pool buffer, to the main loop over datagramCh, and
// exits once the socket is closed from Serve's teardown.
func (u *udpRoute) recvLoop(out chan<- udpDatagram, done chan<- struct{}, shutdown *signal.Token) {
	defer close(done)
	for {
		buf := u.bufPool.Get()
		n, addr, err := u.socket.ReadFromUDP(buf)
		if err != nil {
			u.bufPool.Put(buf)
			return
		}
		select {
		case out <- udpDatagram{addr: addr, buf: buf, n: n}:
		case <-shutdown.Done():
			u.bufPool.Put(buf)
			return
		}
	}
}

func (u *udpRoute) evict(flows map[string]*quicstream.Stream, addr string) {
	stream, ok := flows[addr]
	if !ok {
		// Already gone -- eviction is idempotent.
		return
	}
	delete(flows, addr)
	stream.Close()
	metrics.UDPFlowTableSize.WithLabelValues(u.name).Set(float64(len(flows)))
}

func (u *udpRoute) handleDatagram(ctx context.Context, flows map[string]*quicstream.Stream, evictCh chan<- string, shutdown *signal.Token, dg udpDatagram) {
	defer u.bufPool.Put(dg.buf)
	key := dg.addr.String()

	if stream, ok := flows[key]; ok {
		if err := frame.WriteFrame(stream, dg.payload()); err != nil {
			u.log.Debug().Err(err).Str("peer", key).Msg("udp flow send failed, evicting")
			delete(flows, key)
			stream.Close()
			metrics.UDPFlowTableSize.WithLabelValues(u.name).Set(float64(len(flows)))
		}
		return
	}

	qs, err := u.conn.OpenStreamSync(ctx)
	if err != nil {
		u.log.Warn().Err(err).Msg("failed to open substream for new udp flow, dropping datagram")
		return
	}
	stream := quicstream.New(qs, u.writeTimeout, &u.log)
	if err := protocol.WriteStreamStart(stream, u.name); err != nil {
		u.log.Warn().Err(err).Msg("failed to write stream preamble for new udp flow, dropping datagram")
		stream.Close()
		return
	}
	if err := frame.WriteFrame(stream, dg.payload()); err != nil {
		u.log.Warn().Err(err).Str("peer", key).Msg("failed to write first udp datagram, dropping")
		stream.Close()
		return
	}

	// Only a flow whose first datagram made it onto the wire gets an entry:
	// a failed first send must leave no trace in the flow table.
	flows[key] = stream
	metrics.UDPFlowsTotal.WithLabelValues(u.name).Inc()
	metrics.UDPFlowTableSize.WithLabelValues(u.name).Set(float64(len(flows)))

	go u.inbound(stream, dg.addr, key, evictCh, shutdown)
}

// inbound reads datagrams framed on the substream and writes them back out
// the public socket to addr. It requests its own flow's eviction once its
// read fails, whether that is because the peer closed its send half or
// because the main loop already evicted and closed the stream.
func (u *udpRoute) inbound(stream *quicstream.Stream, addr *net.UDPAddr, key string, evictCh chan<- string, shutdown *signal.Token) {
	r := bufio.NewReaderSize(stream, u.bufferSize)
	for {
		payload, err := frame.ReadFrame(r, u.bufferSize)
		if err != nil {
			break
		}
		if _, err := u.socket.WriteToUDP(payload, addr); err != nil {
			break
		}
	}
	select {
	case evictCh <- key:
	case <-shutdown.Done():
	}
}
