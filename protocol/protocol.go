// Package protocol implements the three handshake exchanges carried on the
// initial substream of a peer connection -- Auth, RegisterRoute, and
// RegisterRouteRes -- plus the StreamStart preamble every data substream
// begins with.
package protocol

import (
	"bufio"
	"io"

	"github.com/relaytun/relaytun/frame"
)

// Application-level QUIC close codes, passed to Connection.CloseWithError.
const (
	AppErrorShutdown   = 0
	AppErrorAuthFailed = 10
)

// AuthAckByte is the single byte the server writes after a successful Auth.
const AuthAckByte = 11

// Size caps for the handshake frames. The registration list gets a larger
// cap since it carries one entry per configured route.
const (
	maxControlFrame      = 512
	maxRegistrationFrame = 1024
)

// WriteAuth writes an Auth message.
func WriteAuth(w io.Writer, token string) error {
	return frame.WriteFrame(w, frame.EncodeAuth(frame.Auth{Token: token}))
}

// ReadAuth reads and decodes an Auth message.
func ReadAuth(r *bufio.Reader) (frame.Auth, error) {
	payload, err := frame.ReadFrame(r, maxControlFrame)
	if err != nil {
		return frame.Auth{}, err
	}
	return frame.DecodeAuth(payload)
}

// WriteRegisterRoutes writes the ordered route registration list.
func WriteRegisterRoutes(w io.Writer, routes []frame.RegisterRoute) error {
	return frame.WriteFrame(w, frame.EncodeRegisterRoutes(routes))
}

// ReadRegisterRoutes reads and decodes the route registration list.
func ReadRegisterRoutes(r *bufio.Reader) ([]frame.RegisterRoute, error) {
	payload, err := frame.ReadFrame(r, maxRegistrationFrame)
	if err != nil {
		return nil, err
	}
	return frame.DecodeRegisterRoutes(payload)
}

// WriteResult writes the server's single RegisterRouteRes response.
func WriteResult(w io.Writer, res frame.RegisterRouteRes) error {
	return frame.WriteFrame(w, frame.EncodeRegisterRouteRes(res))
}

// ReadResult reads and decodes the RegisterRouteRes response.
func ReadResult(r *bufio.Reader) (frame.RegisterRouteRes, error) {
	payload, err := frame.ReadFrame(r, maxControlFrame)
	if err != nil {
		return frame.RegisterRouteRes{}, err
	}
	return frame.DecodeRegisterRouteRes(payload)
}

// WriteStreamStart writes the preamble that begins every data substream.
func WriteStreamStart(w io.Writer, routeName string) error {
	return frame.WriteFrame(w, frame.EncodeStreamStart(frame.StreamStart{RouteName: routeName}))
}

// ReadStreamStart reads and decodes the StreamStart preamble.
func ReadStreamStart(r *bufio.Reader) (frame.StreamStart, error) {
	payload, err := frame.ReadFrame(r, maxControlFrame)
	if err != nil {
		return frame.StreamStart{}, err
	}
	return frame.DecodeStreamStart(payload)
}
