package structures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferPushPop(t *testing.T) {
	rb := NewRingBuffer(8)

	require.NoError(t, rb.Push(1.5))
	require.NoError(t, rb.Push(2.5))
	assert.Equal(t, uint64(2), rb.Len())

	v, err := rb.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = rb.Pop()
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	_, err = rb.Pop()
	assert.ErrorIs(t, err, ErrBufferEmpty)
}

func TestRingBufferRoundsToPowerOfTwo(t *testing.T) {
	rb := NewRingBuffer(5)
	assert.Equal(t, uint64(8), rb.Cap())
}

func TestRingBufferFull(t *testing.T) {
	rb := NewRingBuffer(4)

	// Capacity 4 with one slot reserved: three pushes fit.
	require.NoError(t, rb.Push(1))
	require.NoError(t, rb.Push(2))
	require.NoError(t, rb.Push(3))
	assert.ErrorIs(t, rb.Push(4), ErrBufferFull)
}

func TestRingBufferOfferEvictsOldest(t *testing.T) {
	rb := NewRingBuffer(4)

	for i := 1; i <= 6; i++ {
		rb.Offer(float64(i))
	}

	// Window keeps the most recent samples, oldest first.
	assert.Equal(t, []float64{4, 5, 6}, rb.Snapshot())
}

func TestRingBufferMean(t *testing.T) {
	rb := NewRingBuffer(8)
	assert.Equal(t, float64(0), rb.Mean())

	rb.Offer(10)
	rb.Offer(20)
	rb.Offer(30)
	assert.InDelta(t, 20.0, rb.Mean(), 0.001)
}

func TestRingBufferWraparound(t *testing.T) {
	rb := NewRingBuffer(4)

	for i := 0; i < 3; i++ {
		require.NoError(t, rb.Push(float64(i)))
	}
	for i := 0; i < 3; i++ {
		v, err := rb.Pop()
		require.NoError(t, err)
		assert.Equal(t, float64(i), v)
	}

	// Indices have wrapped past capacity; the buffer must still behave.
	for i := 10; i < 13; i++ {
		require.NoError(t, rb.Push(float64(i)))
	}
	assert.Equal(t, []float64{10, 11, 12}, rb.Snapshot())
}
