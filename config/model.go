// Package config loads and validates the tunnel's YAML configuration:
// exactly one of a Server or a Client root must be configured. Route
// hot-reload is not supported, so configuration is read once at startup.
package config

import (
	"time"

	"github.com/relaytun/relaytun/route"
)

// RouteEntry is one entry of the `route:` map. Name comes from the map key,
// not a field, so it is filled in by the decoder.
type RouteEntry struct {
	Name          string `yaml:"-"`
	Type          string `yaml:"type"`
	Bind          string `yaml:"bind,omitempty"` // server routes only
	To            string `yaml:"to,omitempty"`   // client routes only
	UDPBufferSize int    `yaml:"udpBuffer,omitempty"`
}

// Server is the server-role configuration.
type Server struct {
	Bind                  string       `yaml:"bind"`
	Token                 string       `yaml:"token"`
	Cert                  string       `yaml:"cert"`
	PrivateKey            string       `yaml:"privateKey"`
	MaxConcurrentStreams  int          `yaml:"maxConcurrentBidiStreams,omitempty"`
	Routes                []RouteEntry `yaml:"-"` // populated from the ordered `route:` map
}

// Client is the client-role configuration.
type Client struct {
	Remote               string       `yaml:"remote"`
	Token                string       `yaml:"token"`
	Cert                 string       `yaml:"cert"`
	RetryInterval        string       `yaml:"retryInterval,omitempty"`
	MaxRetry             uint         `yaml:"maxRetry,omitempty"`
	MaxConcurrentStreams int          `yaml:"maxConcurrentBidiStreams,omitempty"`
	Routes               []RouteEntry `yaml:"-"`
}

// Root is the top-level configuration document. Exactly one of Server or
// Client is populated.
type Root struct {
	LogLevel string  `yaml:"logLevel,omitempty"`
	LogFile  string  `yaml:"logFile,omitempty"`
	Server   *Server `yaml:"server,omitempty"`
	Client   *Client `yaml:"client,omitempty"`
}

// DefaultMaxConcurrentStreams is used when a side omits the setting.
const DefaultMaxConcurrentStreams = 100

// MaxConcurrentStreamsOrDefault returns the configured cap, or the default.
func (s *Server) MaxConcurrentStreamsOrDefault() int {
	if s.MaxConcurrentStreams > 0 {
		return s.MaxConcurrentStreams
	}
	return DefaultMaxConcurrentStreams
}

// MaxConcurrentStreamsOrDefault returns the configured cap, or the default.
func (c *Client) MaxConcurrentStreamsOrDefault() int {
	if c.MaxConcurrentStreams > 0 {
		return c.MaxConcurrentStreams
	}
	return DefaultMaxConcurrentStreams
}

// ServerRoutes converts the configured route entries into a route.ServerSet.
func (s *Server) ServerRoutes() ([]route.Server, error) {
	out := make([]route.Server, 0, len(s.Routes))
	for _, e := range s.Routes {
		typ, err := parseRouteType(e.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, route.Server{
			Name:          e.Name,
			Type:          typ,
			Bind:          e.Bind,
			UDPBufferSize: e.UDPBufferSize,
		})
	}
	return out, nil
}

// RetryPolicy parses RetryInterval into a time.Duration for the reconnect
// supervisor. An empty or unparseable interval disables reconnection
// (interval 0), matching the behavior of a client config with no retry
// interval configured at all.
func (c *Client) RetryPolicy() (time.Duration, uint) {
	if c.RetryInterval == "" {
		return 0, c.MaxRetry
	}
	d, err := time.ParseDuration(c.RetryInterval)
	if err != nil {
		return 0, c.MaxRetry
	}
	return d, c.MaxRetry
}

// ClientRoutes converts the configured route entries into route.Client
// values, in the order they appear in the config (registration order).
func (c *Client) ClientRoutes() ([]route.Client, error) {
	out := make([]route.Client, 0, len(c.Routes))
	for _, e := range c.Routes {
		typ, err := parseRouteType(e.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, route.Client{
			Name:          e.Name,
			Type:          typ,
			To:            e.To,
			UDPBufferSize: e.UDPBufferSize,
		})
	}
	return out, nil
}

func parseRouteType(s string) (route.Type, error) {
	switch s {
	case "tcp", "":
		return route.TCP, nil
	case "udp":
		return route.UDP, nil
	default:
		return 0, &InvalidRouteTypeError{Type: s}
	}
}

// InvalidRouteTypeError reports a route entry whose type is neither "tcp"
// nor "udp".
type InvalidRouteTypeError struct {
	Type string
}

func (e *InvalidRouteTypeError) Error() string {
	return "invalid route type: " + e.Type
}
