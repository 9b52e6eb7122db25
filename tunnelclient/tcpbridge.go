package tunnelclient

import (
	"bufio"
	"io"
	"net"

	"github.com/relaytun/relaytun/quicstream"
	"github.com/relaytun/relaytun/route"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// bridgeTCP connects to the route's local backend and copies bytes in both
// directions until either side errs or closes.
func bridgeTCP(stream *quicstream.Stream, r *bufio.Reader, rt route.Client, log *zerolog.Logger) {
	defer stream.Close()

	backend, err := net.Dial("tcp", rt.To)
	if err != nil {
		log.Warn().Err(err).Str("route", rt.Name).Msg("failed to connect to tcp backend")
		return
	}
	defer backend.Close()

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(backend, r)
		closeWrite(backend)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stream, backend)
		stream.CloseWrite()
		return err
	})
	if err := g.Wait(); err != nil {
		log.Debug().Err(err).Str("route", rt.Name).Msg("tcp bridge ended")
	}
}
