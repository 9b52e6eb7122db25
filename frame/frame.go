// Package frame implements the wire framing used on every QUIC substream:
// an unsigned varint length prefix followed by that many bytes of payload.
// Control messages and UDP datagram bodies share this framing; only the
// payload layout differs (see codec.go).
package frame

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// ErrFraming is returned whenever a frame cannot be read off the wire: a
// truncated varint, an oversize length, a short payload, or (from the codec)
// a payload that does not deserialize to the expected message.
var ErrFraming = fmt.Errorf("frame: malformed")

// Default size caps used when decoding specific message kinds. These bound
// allocation; they are not protocol versioning and can be tuned freely.
const (
	MaxTokenLen     = 256
	MaxRouteNameLen = 256
	MaxReasonLen    = 256
	MaxRouteCount   = 1024
)

// WriteFrame writes the varint length prefix followed by payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one varint-length-prefixed payload from r. maxLen bounds
// the accepted length; a longer frame is rejected as ErrFraming without
// reading its payload, so a hostile peer cannot force a large allocation.
func ReadFrame(r *bufio.Reader, maxLen int) ([]byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading frame length: %v", ErrFraming, err)
	}
	if length > uint64(maxLen) {
		return nil, fmt.Errorf("%w: frame length %d exceeds cap %d", ErrFraming, length, maxLen)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: reading frame payload: %v", ErrFraming, err)
		}
	}
	return payload, nil
}
