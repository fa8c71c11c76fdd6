package transport

import "sync"

// bufferPool recycles frame-body byte slices across receives, avoiding a
// fresh allocation per frame on a busy connection. Adapted from the
// teacher's BytePool (memory.go): same get/put-with-size-check shape,
// generalized from a fixed 1 KiB seed to the frame sizes this protocol
// actually sees.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}
}

// get returns a slice of exactly size bytes, reusing pooled capacity when
// it's big enough and allocating fresh otherwise.
func (p *bufferPool) get(size int) []byte {
	buf := p.pool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

// put returns buf to the pool for reuse, unless it's unusually large —
// pooling an oversized buffer would keep it alive indefinitely for no
// benefit to typical frames.
func (p *bufferPool) put(buf []byte) {
	if cap(buf) <= 64*1024 {
		p.pool.Put(buf[:0])
	}
}
