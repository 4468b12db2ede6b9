// ════════════════════════════════════════════════════════════════════════════════════════════════
// LOCK-FREE SPSC RING BUFFER - 8-BYTE RECORDS
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Dispatcher Ready Queue
//
// Description:
//   Fixed-capacity single-producer/single-consumer ring carrying 8-byte activation
//   records (task id + activation metadata). One ring backs each shared dispatcher
//   line: spawn requests push in FIFO order, the dispatcher handler drains.
//
// Architecture overview:
//   - Separated head/tail cursors on isolated cache lines
//   - Sequence-based slot availability signaling, no atomic RMW
//   - Power-of-2 sizing with bit masking for O(1) operations
//   - Zero allocation after construction
//
// Safety model:
//   - ⚠️ SPSC discipline required. In this runtime all spawn producers are
//     serialized by construction: task bodies and the timer handler run on
//     the single core goroutine, and initialization spawns happen before the
//     core starts. The dispatcher handler is the only consumer.
//   - Push returns false when full; the dispatch layer maps that to its
//     capacity error and leaves the ring untouched.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package ring8

import (
	"sync/atomic"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE DATA STRUCTURES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// slot is one ring entry: an 8-byte record plus its availability sequence.
//
// Sequence semantics:
//   - Producer: sets seq = position + 1 when the record is ready
//   - Consumer: expects seq = position + 1 for an available record
//   - Reset: consumer sets seq = position + ring size for reuse
//
//go:notinheap
type slot struct {
	val uint64 // Activation record payload
	seq uint64 // Sequence number for availability signaling
}

// Ring is a cache-isolated SPSC ring of 8-byte records.
//
//go:notinheap
//go:align 64
type Ring struct {
	_    [64]byte // Cache line isolation for the head cursor
	head uint64   // Consumer read position

	_    [56]byte // Cache line isolation for the tail cursor
	tail uint64   // Producer write position

	_ [56]byte // Isolation before shared configuration

	mask uint64 // Size - 1 for bit-masked indexing
	step uint64 // Ring size for sequence reset
	buf  []slot // Backing slot array

	_ [5]uint64 // Tail padding
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSTRUCTOR
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// New creates a ring with the given capacity. Capacity must be a positive
// power of two; the registry guarantees that for dispatcher queues, so a
// violation here is a build bug, not an operational error.
func New(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("ring8: size must be >0 and power of two")
	}

	r := &Ring{
		mask: uint64(size - 1),
		step: uint64(size),
		buf:  make([]slot, size),
	}
	for i := range r.buf {
		r.buf[i].seq = uint64(i)
	}
	return r
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PRODUCER OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Push enqueues one record. Returns false when the ring is full; the ring is
// left unchanged in that case. Single producer only.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func (r *Ring) Push(val uint64) bool {
	t := r.tail
	s := &r.buf[t&r.mask]

	// Slot availability via sequence number
	if atomic.LoadUint64(&s.seq) != t {
		return false
	}

	s.val = val
	atomic.StoreUint64(&s.seq, t+1)
	r.tail = t + 1
	return true
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CONSUMER OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Pop dequeues the oldest record. Returns ok=false when the ring is empty.
// Single consumer only.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func (r *Ring) Pop() (val uint64, ok bool) {
	h := r.head
	s := &r.buf[h&r.mask]

	if atomic.LoadUint64(&s.seq) != h+1 {
		return 0, false
	}

	val = s.val
	atomic.StoreUint64(&s.seq, h+r.step)
	r.head = h + 1
	return val, true
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// METADATA
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Len reports the number of records currently enqueued. Exact only when
// called from the producer or consumer side while the other is quiescent;
// used by capacity tests and the trace recorder.
//
//go:nosplit
//go:inline
func (r *Ring) Len() int {
	return int(r.tail - r.head)
}

// Cap reports the ring capacity.
//
//go:nosplit
//go:inline
func (r *Ring) Cap() int {
	return int(r.step)
}
