package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPoolGetExactLength(t *testing.T) {
	p := newBufferPool()
	buf := p.get(10)
	assert.Len(t, buf, 10)

	big := p.get(100000)
	assert.Len(t, big, 100000)
}

func TestBufferPoolReusesPutBuffers(t *testing.T) {
	p := newBufferPool()
	buf := p.get(128)
	p.put(buf)

	reused := p.get(64)
	assert.Len(t, reused, 64)
}
