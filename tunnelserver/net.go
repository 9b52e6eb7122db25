package tunnelserver

import "net"

// halfCloser is implemented by *net.TCPConn and similar connections that
// support shutting down only the write half.
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
