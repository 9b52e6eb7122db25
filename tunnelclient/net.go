package tunnelclient

import "net"

type halfCloser interface {
	CloseWrite() error
}

// closeWrite half-closes conn's write side if it supports that, falling
// back to a full close otherwise.
func closeWrite(conn net.Conn) {
	if hc, ok := conn.(halfCloser); ok {
		hc.CloseWrite()
		return
	}
	conn.Close()
}
