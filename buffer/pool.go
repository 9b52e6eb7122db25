// Package buffer provides a reusable byte-slice pool, used by the UDP route
// worker to avoid allocating a fresh receive buffer for every datagram. A
// buffer only needs to be reset to full capacity between reads.
package buffer

import "sync"

// Pool hands out fixed-size byte slices and recycles them on Put.
type Pool struct {
	// A Pool must not be copied after first use, see sync.Pool's docs.
	buffers sync.Pool
	size    int
}

// NewPool creates a Pool whose Get always returns a slice of length size.
func NewPool(size int) *Pool {
	return &Pool{
		size: size,
		buffers: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

// Get returns a buffer of the pool's configured size, full capacity.
func (p *Pool) Get() []byte {
	buf := p.buffers.Get().([]byte)
	return buf[:p.size]
}

// Put returns buf to the pool for reuse.
func (p *Pool) Put(buf []byte) {
	p.buffers.Put(buf) //nolint:staticcheck // size is fixed per pool, slice header is fine to reuse as-is
}
