package tunnelserver

import (
	"context"
	"io"

	"github.com/relaytun/relaytun/signal"
)

// routeWorker is either a server TCP route or a server UDP route: a task
// spawned for the lifetime of one registered route on one peer connection.
type routeWorker interface {
	io.Closer
	Name() string
	Serve(ctx context.Context, shutdown *signal.Token)
	Done() <-chan struct{}
}
