package pool

import (
	"sync"
	"sync/atomic"
)

// BufferPool recycles copy buffers for the streamed downloads so each
// worker does not allocate a fresh buffer per archive.
type BufferPool struct {
	pool     sync.Pool
	size     int
	acquired atomic.Int64
	recycled atomic.Int64
}

// NewBufferPool creates a pool of fixed-size buffers.
func NewBufferPool(bufferSize int) *BufferPool {
	if bufferSize <= 0 {
		bufferSize = 256 * 1024
	}
	return &BufferPool{
		size: bufferSize,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() []byte {
	bp.acquired.Add(1)
	return bp.pool.Get().([]byte)[:bp.size]
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf []byte) {
	if buf == nil || cap(buf) != bp.size {
		return
	}
	bp.recycled.Add(1)
	bp.pool.Put(buf[:cap(buf)])
}

// Stats returns pool statistics
type BufferPoolStats struct {
	Size     int   `json:"size"`
	Acquired int64 `json:"acquired"`
	Recycled int64 `json:"recycled"`
}

func (bp *BufferPool) Stats() BufferPoolStats {
	return BufferPoolStats{
		Size:     bp.size,
		Acquired: bp.acquired.Load(),
		Recycled: bp.recycled.Load(),
	}
}
