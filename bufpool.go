package zxc

// bufferPool recycles block-sized buffers between pipeline stages: a channel
// of free slabs. get prefers a pooled buffer and falls back to allocating;
// put drops buffers once the pool is full, so a stream operation's buffer
// footprint stays proportional to its queue depth.
type bufferPool struct {
	bufs chan []byte
	size int
}

func newBufferPool(capacity, size int) *bufferPool {
	return &bufferPool{
		bufs: make(chan []byte, capacity),
		size: size,
	}
}

// get returns a buffer of exactly the pool's size.
func (p *bufferPool) get() []byte {
	select {
	case b := <-p.bufs:
		return b
	default:
		return make([]byte, p.size)
	}
}

// put offers a buffer back. Undersized buffers are dropped; oversized ones
// (grown by a pathological block) are trimmed back to the pool size.
func (p *bufferPool) put(b []byte) {
	if cap(b) < p.size {
		return
	}
	select {
	case p.bufs <- b[:p.size]:
	default:
	}
}
