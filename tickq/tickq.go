// Package tickq is a zero-alloc tick-bucket wake queue. A three-level bitmap
// summary gives O(1) PeekMin/PopMin over a 262,144-tick window; chains within
// one tick bucket are FIFO so equal wake instants pop in insertion order.
// Entries live in a fixed arena sized by the maximum number of concurrently
// suspendable tasks; there is no heap use after construction.
package tickq

import (
	"errors"
	"math/bits"

	"main/constants"
	"main/types"
)

const (
	groupCount = 64                                 // Top-level summary groups
	laneCount  = 64                                 // Lanes per group
	Window     = groupCount * laneCount * laneCount // Tick resolution: 262,144
	capItems   = constants.MaxTasks                 // One entry per suspendable task
)

type idx32 uint32

const nilIdx idx32 = ^idx32(0)

// Handle is an opaque arena index for one outstanding wake entry.
type Handle = idx32

var (
	ErrFull         = errors.New("tickq: no free entries")
	ErrEmpty        = errors.New("tickq: empty queue")
	ErrPastWindow   = errors.New("tickq: wake instant before window base")
	ErrBeyondWindow = errors.New("tickq: wake instant beyond window")
	ErrItemNotFound = errors.New("tickq: invalid or idle handle")
)

type node struct {
	next, prev idx32
	wake       types.Tick // Absolute wake instant; valid while queued
	task       types.TaskID
	queued     bool
}

// Queue holds pending wake entries ordered by wake instant. The bucket
// window is relative to baseTick, which rebases to "now" whenever the queue
// goes empty, so the structure tolerates indefinitely long uptimes as long
// as no single delay exceeds the window.
type Queue struct {
	arena    [capItems]node
	freeHead idx32
	size     int
	baseTick types.Tick

	heads [Window]idx32 // Per-bucket FIFO chain heads
	tails [Window]idx32 // Per-bucket FIFO chain tails

	summary uint64                      // Bit g set = group g has entries
	l1      [groupCount]uint64          // Bit l set = lane l of group has entries
	l2      [groupCount * laneCount]uint64 // Bit b set = bucket b of lane has entries
}

// New initializes the arena freelist and empty bucket chains.
func New() *Queue {
	q := &Queue{}
	for i := 0; i < capItems-1; i++ {
		q.arena[i].next = idx32(i + 1)
	}
	q.arena[capItems-1].next = nilIdx
	q.freeHead = 0
	for i := range q.heads {
		q.heads[i] = nilIdx
		q.tails[i] = nilIdx
	}
	return q
}

// Borrow allocates an entry handle from the freelist.
//
//go:nosplit
//go:inline
func (q *Queue) Borrow() (Handle, error) {
	h := q.freeHead
	if h == nilIdx {
		return nilIdx, ErrFull
	}
	n := &q.arena[h]
	q.freeHead = n.next
	n.next, n.prev, n.queued = nilIdx, nilIdx, false
	return h, nil
}

// Return gives an unqueued handle back to the freelist. Queued handles are
// released automatically by PopMin and Remove.
//
//go:nosplit
//go:inline
func (q *Queue) Return(h Handle) error {
	if h >= capItems || q.arena[h].queued {
		return ErrItemNotFound
	}
	q.release(h)
	return nil
}

//go:nosplit
func (q *Queue) release(h idx32) {
	n := &q.arena[h]
	n.next = q.freeHead
	n.prev = nilIdx
	n.queued = false
	q.freeHead = h
}

// Push files a wake entry for the given task at the absolute instant wake.
// now anchors the bucket window: when the queue is empty the window rebases
// to now, so the only hard limit is wake - now < Window ticks. FIFO within
// one instant: entries append at the bucket tail.
//
//go:nosplit
func (q *Queue) Push(now, wake types.Tick, h Handle, task types.TaskID) error {
	if h >= capItems || q.arena[h].queued {
		return ErrItemNotFound
	}
	if q.size == 0 {
		q.baseTick = now
	}
	if wake < q.baseTick {
		return ErrPastWindow
	}
	delta := uint64(wake - q.baseTick)
	if delta >= Window {
		return ErrBeyondWindow
	}

	n := &q.arena[h]
	n.wake, n.task, n.queued = wake, task, true
	n.next = nilIdx

	// Tail append keeps same-instant entries in insertion order.
	bkt := idx32(delta)
	n.prev = q.tails[bkt]
	if n.prev != nilIdx {
		q.arena[n.prev].next = h
	} else {
		q.heads[bkt] = h
	}
	q.tails[bkt] = h

	g := delta >> 12
	l := delta >> 6
	q.l2[l] |= 1 << (delta & 63)
	q.l1[g] |= 1 << (l & 63)
	q.summary |= 1 << g
	q.size++
	return nil
}

// minBucket locates the lowest occupied bucket via the bitmap hierarchy.
//
//go:nosplit
//go:inline
func (q *Queue) minBucket() idx32 {
	g := uint64(bits.TrailingZeros64(q.summary))
	l := g<<6 | uint64(bits.TrailingZeros64(q.l1[g]))
	b := l<<6 | uint64(bits.TrailingZeros64(q.l2[l]))
	return idx32(b)
}

// PeekMin reports the earliest pending entry without removing it.
//
//go:nosplit
func (q *Queue) PeekMin() (h Handle, wake types.Tick, task types.TaskID, ok bool) {
	if q.size == 0 {
		return nilIdx, 0, 0, false
	}
	bkt := q.minBucket()
	h = q.heads[bkt]
	n := &q.arena[h]
	return h, n.wake, n.task, true
}

// PopMin removes and returns the earliest pending entry, releasing its
// handle to the freelist. Ties pop in insertion order.
//
//go:nosplit
func (q *Queue) PopMin() (h Handle, wake types.Tick, task types.TaskID, ok bool) {
	if q.size == 0 {
		return nilIdx, 0, 0, false
	}
	bkt := q.minBucket()
	h = q.heads[bkt]
	n := &q.arena[h]
	wake, task = n.wake, n.task

	q.unlink(h, bkt)
	q.release(h)
	return h, wake, task, true
}

// Remove withdraws a queued entry before it fires (cancellation) and
// releases its handle. The caller reprograms the compare register if the
// removed entry was the head.
//
//go:nosplit
func (q *Queue) Remove(h Handle) error {
	if h >= capItems || !q.arena[h].queued {
		return ErrItemNotFound
	}
	n := &q.arena[h]
	bkt := idx32(uint64(n.wake - q.baseTick))
	q.unlink(h, bkt)
	q.release(h)
	return nil
}

// unlink detaches an entry from its bucket chain and clears summary bits
// when the bucket empties.
//
//go:nosplit
func (q *Queue) unlink(h idx32, bkt idx32) {
	n := &q.arena[h]
	if n.prev != nilIdx {
		q.arena[n.prev].next = n.next
	} else {
		q.heads[bkt] = n.next
	}
	if n.next != nilIdx {
		q.arena[n.next].prev = n.prev
	} else {
		q.tails[bkt] = n.prev
	}

	if q.heads[bkt] == nilIdx {
		delta := uint64(bkt)
		g := delta >> 12
		l := delta >> 6
		q.l2[l] &^= 1 << (delta & 63)
		if q.l2[l] == 0 {
			q.l1[g] &^= 1 << (l & 63)
			if q.l1[g] == 0 {
				q.summary &^= 1 << g
			}
		}
	}
	q.size--
}

func (q *Queue) Size() int   { return q.size }
func (q *Queue) Empty() bool { return q.size == 0 }
