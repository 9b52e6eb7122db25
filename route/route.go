// Package route holds the immutable per-side route tables described by the
// tunnel's data model: a client route names a local backend, a server route
// names a public listener, and the pair (name, type) must agree between the
// two sides.
package route

import (
	"fmt"

	"github.com/relaytun/relaytun/frame"
)

// Type is the transport mode of a route: TCP (reliable byte stream) or UDP
// (datagram). It is the same enum carried on the wire in RegisterRoute.
type Type = frame.RouteType

const (
	TCP = frame.RouteTCP
	UDP = frame.RouteUDP
)

// DefaultUDPBufferSize is used when a route does not configure one.
const DefaultUDPBufferSize = 2048

// Client is a client-side route: traffic arriving on a substream tagged with
// Name is bridged to the backend at To.
type Client struct {
	Name          string
	Type          Type
	To            string
	UDPBufferSize int
}

// BufferSize returns the configured UDP read buffer size, or the default.
func (c Client) BufferSize() int {
	if c.UDPBufferSize > 0 {
		return c.UDPBufferSize
	}
	return DefaultUDPBufferSize
}

// Server is a server-side route: the public listener bound at Bind, fanning
// accepted connections/datagrams into substreams tagged with Name.
type Server struct {
	Name          string
	Type          Type
	Bind          string
	UDPBufferSize int
}

// BufferSize returns the configured UDP read buffer size, or the default.
func (s Server) BufferSize() int {
	if s.UDPBufferSize > 0 {
		return s.UDPBufferSize
	}
	return DefaultUDPBufferSize
}

// ClientSet is the immutable, ordered table of routes a client registers.
// Order is preserved because it is the order RegisterRoute entries are sent
// on the wire, and the server processes them in that order.
type ClientSet struct {
	ordered []Client
	byName  map[string]Client
}

// NewClientSet builds a ClientSet, rejecting duplicate route names.
func NewClientSet(routes []Client) (*ClientSet, error) {
	byName := make(map[string]Client, len(routes))
	for _, r := range routes {
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate client route name %q", r.Name)
		}
		byName[r.Name] = r
	}
	ordered := make([]Client, len(routes))
	copy(ordered, routes)
	return &ClientSet{ordered: ordered, byName: byName}, nil
}

// Lookup finds a client route by name.
func (s *ClientSet) Lookup(name string) (Client, bool) {
	r, ok := s.byName[name]
	return r, ok
}

// Ordered returns the routes in registration order.
func (s *ClientSet) Ordered() []Client {
	return s.ordered
}

// ServerSet is the immutable table of routes a server can bind.
type ServerSet struct {
	byName map[string]Server
}

// NewServerSet builds a ServerSet, rejecting duplicate route names.
func NewServerSet(routes []Server) (*ServerSet, error) {
	byName := make(map[string]Server, len(routes))
	for _, r := range routes {
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("duplicate server route name %q", r.Name)
		}
		byName[r.Name] = r
	}
	return &ServerSet{byName: byName}, nil
}

// Lookup finds a server route by (name, type). A route that exists under
// that name but with a different type is reported as not found, per the
// pairing invariant: mismatched type is rejected the same way as a missing
// route.
func (s *ServerSet) Lookup(name string, typ Type) (Server, bool) {
	r, ok := s.byName[name]
	if !ok || r.Type != typ {
		return Server{}, false
	}
	return r, true
}
