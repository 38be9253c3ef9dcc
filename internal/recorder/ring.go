package recorder

import (
	"sync/atomic"

	"github.com/tphakala/rawrecord/internal/errors"
)

// RingBuffer is a fixed-capacity circular array of interleaved float64 samples.
//
// The capacity is a power of two so positions wrap with index & (capacity-1).
// head is advanced only by the producer and tail only by the writer; both
// stay in [0, capacity). The buffer performs no bounds checking between the
// two: the owning Session guarantees that the producer never writes into a
// region that has not been flushed yet.
type RingBuffer struct {
	data     []float64
	capacity uint64
	mask     uint64
	exponent uint

	head atomic.Uint64
	tail atomic.Uint64
}

// NewRingBuffer allocates a ring buffer of capacity samples. The capacity
// must be a power of two of at least 2 so that it splits into equal halves.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity < 2 || !IsPow2(uint64(capacity)) {
		return nil, errors.Newf("ring buffer capacity %d is not a power of two >= 2", capacity).
			Component("recorder").
			Category(errors.CategoryValidation).
			Context("capacity", capacity).
			Build()
	}

	c := uint64(capacity)
	return &RingBuffer{
		data:     make([]float64, c),
		capacity: c,
		mask:     c - 1,
		exponent: Log2(c),
	}, nil
}

// Capacity returns the number of sample slots.
func (rb *RingBuffer) Capacity() uint64 { return rb.capacity }

// Exponent returns log2(capacity).
func (rb *RingBuffer) Exponent() uint { return rb.exponent }

// Half returns half the capacity, the size of one flush.
func (rb *RingBuffer) Half() uint64 { return rb.capacity >> 1 }

// Head returns the next write position.
func (rb *RingBuffer) Head() uint64 { return rb.head.Load() }

// Tail returns the next flush position.
func (rb *RingBuffer) Tail() uint64 { return rb.tail.Load() }

// WriteBlock interleaves frames samples from each channel slice in block
// (frame-major, channel-minor) starting at head. Every slot index is masked,
// so a block that runs past the end of storage continues at slot 0. head is
// left wrapped into [0, capacity); the return value is the unwrapped end
// position head+len(block)*frames, used to detect half boundaries.
//
// WriteBlock never allocates, blocks or fails. Each block[ch] must hold at
// least frames samples.
func (rb *RingBuffer) WriteBlock(block [][]float64, frames int) uint64 {
	pos := rb.head.Load()
	for i := range frames {
		for ch := range block {
			rb.data[pos&rb.mask] = block[ch][i]
			pos++
		}
	}
	rb.head.Store(pos & rb.mask)
	return pos
}

// FlushSlice returns a read-only view of count samples starting at tail.
// The view must not cross the end of storage; half-aligned flushes never do.
// Indices are not modified.
func (rb *RingBuffer) FlushSlice(tail, count uint64) []float64 {
	return rb.data[tail : tail+count : tail+count]
}

// Segments returns count samples starting at tail as at most two views,
// the second one non-empty only when the span wraps past the end of storage.
func (rb *RingBuffer) Segments(tail, count uint64) (first, second []float64) {
	tail &= rb.mask
	if tail+count <= rb.capacity {
		return rb.FlushSlice(tail, count), nil
	}
	firstLen := rb.capacity - tail
	return rb.FlushSlice(tail, firstLen), rb.FlushSlice(0, count-firstLen)
}

// LeftoverSpan returns the number of samples written but not yet flushed.
func (rb *RingBuffer) LeftoverSpan() uint64 {
	head, tail := rb.head.Load(), rb.tail.Load()
	if head >= tail {
		return head - tail
	}
	return rb.capacity - tail + head
}

// AdvanceTail moves tail forward by n samples, wrapping into [0, capacity).
func (rb *RingBuffer) AdvanceTail(n uint64) {
	rb.tail.Store((rb.tail.Load() + n) & rb.mask)
}

// Reset moves head and tail back to slot 0. Sample data is left in place.
func (rb *RingBuffer) Reset() {
	rb.head.Store(0)
	rb.tail.Store(0)
}

// Release drops the sample storage. The buffer must not be used afterwards.
func (rb *RingBuffer) Release() {
	rb.data = nil
}
