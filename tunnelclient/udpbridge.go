package tunnelclient

import (
	"bufio"
	"net"

	"github.com/relaytun/relaytun/frame"
	"github.com/relaytun/relaytun/quicstream"
	"github.com/relaytun/relaytun/route"
	"github.com/rs/zerolog"
)

// bridgeUDP opens an ephemeral socket to the route's local backend and
// shuttles framed datagrams between it and the substream. Either direction
// ending closes both the socket and the substream so the other direction's
// blocked read is released instead of leaking the goroutine.
func bridgeUDP(stream *quicstream.Stream, r *bufio.Reader, rt route.Client, log *zerolog.Logger) {
	defer stream.Close()

	backendAddr, err := net.ResolveUDPAddr("udp", rt.To)
	if err != nil {
		log.Warn().Err(err).Str("route", rt.Name).Msg("failed to resolve udp backend address")
		return
	}
	socket, err := net.DialUDP("udp", nil, backendAddr)
	if err != nil {
		log.Warn().Err(err).Str("route", rt.Name).Msg("failed to open udp socket to backend")
		return
	}
	defer socket.Close()

	bufSize := rt.BufferSize()
	done := make(chan struct{}, 2)

	go func() {
		for {
			payload, err := frame.ReadFrame(r, bufSize)
			if err != nil {
				break
			}
			if _, err := socket.Write(payload); err != nil {
				break
			}
		}
		done <- struct{}{}
	}()

	go func() {
		buf := make([]byte, bufSize)
		for {
			n, err := socket.Read(buf)
			if err != nil {
				break
			}
			if err := frame.WriteFrame(stream, buf[:n]); err != nil {
				break
			}
		}
		done <- struct{}{}
	}()

	<-done
	stream.Close()
	socket.Close()
	<-done
}
