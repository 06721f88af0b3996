package structures

import (
	"errors"
	"sync/atomic"
)

var (
	ErrBufferFull  = errors.New("ring buffer is full")
	ErrBufferEmpty = errors.New("ring buffer is empty")
)

// RingBuffer is a lock-free fixed-capacity buffer of float64 samples.
// It backs sliding windows of recent measurements (throughput, latencies).
type RingBuffer struct {
	buffer []float64
	size   uint64
	mask   uint64
	head   atomic.Uint64
	tail   atomic.Uint64
}

// NewRingBuffer creates a new ring buffer (size must be power of 2)
func NewRingBuffer(size uint64) *RingBuffer {
	if size&(size-1) != 0 {
		// Round up to next power of 2
		size = nextPowerOf2(size)
	}

	return &RingBuffer{
		buffer: make([]float64, size),
		size:   size,
		mask:   size - 1,
	}
}

func nextPowerOf2(n uint64) uint64 {
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

// Push adds a sample to the buffer
func (rb *RingBuffer) Push(sample float64) error {
	for {
		head := rb.head.Load()
		tail := rb.tail.Load()

		if (tail+1)&rb.mask == head&rb.mask {
			return ErrBufferFull
		}

		if rb.tail.CompareAndSwap(tail, tail+1) {
			rb.buffer[tail&rb.mask] = sample
			return nil
		}
	}
}

// Pop removes and returns the oldest sample from the buffer
func (rb *RingBuffer) Pop() (float64, error) {
	for {
		head := rb.head.Load()
		tail := rb.tail.Load()

		if head == tail {
			return 0, ErrBufferEmpty
		}

		sample := rb.buffer[head&rb.mask]
		if rb.head.CompareAndSwap(head, head+1) {
			return sample, nil
		}
	}
}

// Offer pushes a sample, evicting the oldest one when the buffer is full.
// This is the sliding-window behavior used for throughput samples.
func (rb *RingBuffer) Offer(sample float64) {
	for {
		if err := rb.Push(sample); err == nil {
			return
		}
		// Full: drop the oldest and retry.
		if _, err := rb.Pop(); err != nil && !errors.Is(err, ErrBufferEmpty) {
			return
		}
	}
}

// Snapshot copies the current window oldest-first. The view is best-effort
// under concurrent writers, which is acceptable for advisory metrics.
func (rb *RingBuffer) Snapshot() []float64 {
	head := rb.head.Load()
	tail := rb.tail.Load()

	n := (tail - head) & rb.mask
	out := make([]float64, 0, n)
	for i := uint64(0); i < n; i++ {
		out = append(out, rb.buffer[(head+i)&rb.mask])
	}
	return out
}

// Mean returns the average of the current window, 0 when empty.
func (rb *RingBuffer) Mean() float64 {
	samples := rb.Snapshot()
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// Len returns the current number of samples in the buffer
func (rb *RingBuffer) Len() uint64 {
	head := rb.head.Load()
	tail := rb.tail.Load()
	return (tail - head) & rb.mask
}

// Cap returns the capacity of the buffer
func (rb *RingBuffer) Cap() uint64 {
	return rb.size
}
