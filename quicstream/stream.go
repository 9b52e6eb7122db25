// Package quicstream adapts a QUIC bidirectional stream into a single
// full-duplex byte stream so it can be bridged to a TCP socket or used as a
// framed control channel, without callers needing to reason about the
// read-half/write-half split quic-go exposes.
package quicstream

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"
)

// idleTimeoutErr lets handleWriteError recognize a timeout caused by no
// network activity so it doesn't log it as a real failure.
var idleTimeoutErr quic.IdleTimeoutError

// Stream wraps a quic.Stream and makes Close/Write safe to call
// concurrently: closing sets a write deadline so an in-flight Write is not
// blocked forever waiting on a lock Close also needs.
type Stream struct {
	lock         sync.Mutex
	stream       quic.Stream
	writeTimeout time.Duration
	log          *zerolog.Logger
	closing      atomic.Bool
}

// New wraps stream. writeTimeout of 0 disables write deadlines.
func New(stream quic.Stream, writeTimeout time.Duration, log *zerolog.Logger) *Stream {
	return &Stream{
		stream:       stream,
		writeTimeout: writeTimeout,
		log:          log,
	}
}

// Read reads from the stream's receive half. It is independent of Write and
// of the other half's closure.
func (s *Stream) Read(p []byte) (int, error) {
	return s.stream.Read(p)
}

// Write writes to the stream's send half.
func (s *Stream) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.writeTimeout > 0 {
		if err := s.stream.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			s.log.Err(err).Msg("failed to set write deadline on substream")
		}
	}
	n, err := s.stream.Write(p)
	if err != nil {
		s.handleWriteError(err)
	}
	return n, err
}

func (s *Stream) handleWriteError(err error) {
	if s.closing.Load() {
		// Already tearing down; a write error here is expected noise.
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		if !errors.Is(netErr, &idleTimeoutErr) {
			s.log.Error().Err(netErr).Msg("closing substream due to timeout while writing")
		}
		s.stream.CancelWrite(0)
	}
}

// Close tears down both halves of the substream: it cancels the read side
// and closes (finishes) the write side.
func (s *Stream) Close() error {
	s.closing.Store(true)
	// Unblock any writer holding (or about to hold) the lock.
	_ = s.stream.SetWriteDeadline(time.Now())

	s.lock.Lock()
	defer s.lock.Unlock()

	s.stream.CancelRead(0)
	return s.stream.Close()
}

// CloseWrite finishes the send half only: the peer observes EOF on read,
// but this side can keep reading.
func (s *Stream) CloseWrite() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stream.Close()
}

// SetDeadline sets both read and write deadlines on the underlying stream.
func (s *Stream) SetDeadline(t time.Time) error {
	return s.stream.SetDeadline(t)
}
