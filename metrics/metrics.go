// Package metrics exposes the tunnel's Prometheus instrumentation: peer
// connection counts, route bind outcomes, and UDP flow table size, scoped
// to this tunnel's own metric names.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relaytun"

var (
	// PeerConnections counts currently active peer connections on the server.
	PeerConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "peer_connections",
		Help:      "Number of currently active peer (client) connections.",
	})
	// AuthFailuresTotal counts handshake auth rejections.
	AuthFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "auth_failures_total",
		Help:      "Total number of Auth handshakes rejected due to token mismatch.",
	})
	// RouteBindFailuresTotal counts failed RegisterRoute attempts, by kind.
	RouteBindFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "route_bind_failures_total",
		Help:      "Total number of route registration failures, labeled by result kind.",
	}, []string{"kind"})
	// UDPFlowTableSize tracks the live flow count for a UDP route.
	UDPFlowTableSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "udp",
		Name:      "flow_table_size",
		Help:      "Current number of entries in a UDP route's flow table.",
	}, []string{"route"})
	// UDPFlowsTotal counts UDP flows ever created for a route.
	UDPFlowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "udp",
		Name:      "flows_total",
		Help:      "Total number of UDP flows created for a route.",
	}, []string{"route"})
	// TCPBridgesTotal counts accepted TCP connections per route.
	TCPBridgesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tcp",
		Name:      "bridges_total",
		Help:      "Total number of TCP connections bridged for a route.",
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(
		PeerConnections,
		AuthFailuresTotal,
		RouteBindFailuresTotal,
		UDPFlowTableSize,
		UDPFlowsTotal,
		TCPBridgesTotal,
	)
}

// Serve starts an HTTP server exposing /metrics on addr and blocks until ctx
// is canceled.
func Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
