// ════════════════════════════════════════════════════════════════════════════════════════════════
// SUSPENSION EXECUTOR
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Monotonic Timer Queue & Task Continuations
//
// Description:
//   Lets a task body pause at an explicit delay point and resume there later without
//   occupying its interrupt context while waiting. Each suspendable task owns a Frame:
//   an explicit state machine with a program-counter byte, a scratch payload for
//   resumption data, and the lateness of its last wake. Delay files a wake entry in the
//   tick queue and reprograms the hardware compare when the queue head changes; the
//   compare handler drains every due entry and re-spawns the owners through the
//   dispatch layer's spawn path.
//
// Invariants:
//   - The queue head always matches the armed compare value; every head change
//     reprograms the compare before any other entry can fire
//   - Equal wake instants resume in suspension order (FIFO tie-break)
//   - One outstanding suspension per task, bounded by the static frame table
//   - A wake later than its instant by more than the tolerance is surfaced as
//     a late-wake trace event and on the frame itself, never absorbed
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package monotonic

import (
	"errors"
	"time"

	"main/constants"
	"main/nvic"
	"main/tickq"
	"main/tracestore"
	"main/types"
)

var (
	ErrNotSuspendable = errors.New("monotonic: task has no frame")
	ErrSuspended      = errors.New("monotonic: task already has a pending wake")
	ErrNotSuspended   = errors.New("monotonic: no pending wake to cancel")
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// EXECUTOR STATE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Frame is the persisted continuation of one suspendable task: the explicit
// state machine the body drives. The body reads PC to pick its resumption
// point, stashes minimal resumption data in Scratch, and calls Delay to arm
// the next wake.
//
//go:notinheap
//go:align 64
type Frame struct {
	Scratch [40]byte // Resumption payload, owned by the task body

	id        types.TaskID
	pc        uint8      // Resumption state; 0 = initial entry
	suspended bool       // A wake entry is outstanding
	late      types.Tick // Lateness of the last wake, in ticks
	wake      types.Tick // Armed wake instant while suspended
	handle    tickq.Handle
}

var (
	ic      *nvic.Controller
	queue   *tickq.Queue
	respawn func(types.TaskID) error

	frames [constants.MaxTasks]Frame
	bound  [constants.MaxTasks]bool
)

// Init wires the executor to a controller: installs the compare handler on
// the reserved timer line at the given priority and starts the timer
// peripheral. spawn is the dispatch layer's spawn entry point, used to
// re-dispatch woken tasks. Call once, before the core runs.
func Init(c *nvic.Controller, line nvic.Line, prio uint8, spawn func(types.TaskID) error) error {
	if err := c.Enable(line, prio, serviceCompare); err != nil {
		return err
	}
	ic = c
	queue = tickq.New()
	respawn = spawn
	c.StartTimer(line)
	return nil
}

// Bind registers a task as suspendable and returns its frame. Called by the
// dispatch layer while building the task table.
func Bind(id types.TaskID) *Frame {
	f := &frames[id]
	*f = Frame{id: id}
	bound[id] = true
	return f
}

// Reset tears down executor state. Test support only.
func Reset() {
	ic, queue, respawn = nil, nil, nil
	for i := range bound {
		bound[i] = false
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// FRAME OPERATIONS (TASK BODY CONTEXT)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// PC returns the frame's resumption state: 0 on first entry, otherwise the
// value passed to the Delay that suspended the task.
//
//go:nosplit
//go:inline
func (f *Frame) PC() uint8 {
	return f.pc
}

// Lateness reports how many ticks the last wake trailed its programmed
// instant. Values above constants.LateWakeTolerance indicate a timer
// overrun; the body can read this to detect its own deadline misses.
//
//go:nosplit
//go:inline
func (f *Frame) Lateness() types.Tick {
	return f.late
}

// Delay suspends the task: the body must return immediately after calling
// it. The next activation enters with PC() == next, no earlier than d from
// now. Only the owning task body may call Delay, which makes one
// outstanding suspension per task structural rather than policed.
//
// Errors: tickq.ErrBeyondWindow when d exceeds the wake window,
// tickq.ErrFull when the frame table's wake arena is exhausted.
func (f *Frame) Delay(d time.Duration, next uint8) error {
	if f.suspended {
		return ErrSuspended
	}
	now := ic.Now()
	wake := now + ic.TicksIn(d)

	h, err := queue.Borrow()
	if err != nil {
		return err
	}
	if err := queue.Push(now, wake, h, f.id); err != nil {
		queue.Return(h)
		return err
	}
	f.pc = next
	f.handle = h
	f.wake = wake
	f.suspended = true

	// Reprogram the compare only when this entry became the new head; with
	// a FIFO tie-break an equal-instant head keeps the armed value correct.
	if head, _, _, ok := queue.PeekMin(); ok && head == h {
		ic.SetCompare(wake)
	}
	tracestore.Record(types.EvSuspend, f.id, now, uint32(wake-now))
	return nil
}

// Complete marks a body run that returned without suspending: the
// continuation is finished and the next spawn starts from the initial
// state. Called by the dispatch layer after each activation.
//
//go:nosplit
//go:inline
func (f *Frame) Complete() {
	if !f.suspended {
		f.pc = 0
		f.late = 0
	}
}

// Suspended reports whether the frame has an outstanding wake.
//
//go:nosplit
//go:inline
func (f *Frame) Suspended() bool {
	return f.suspended
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CANCELLATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Cancel withdraws a task's pending wake before it fires. If the entry was
// the queue head the compare is reprogrammed to the new head, or disarmed
// when the queue empties. The task's continuation resets to its initial
// state; a later spawn starts it fresh.
func Cancel(id types.TaskID) error {
	if int(id) >= constants.MaxTasks || !bound[id] {
		return ErrNotSuspendable
	}
	f := &frames[id]
	if !f.suspended {
		return ErrNotSuspended
	}

	head, _, _, _ := queue.PeekMin()
	wasHead := head == f.handle

	if err := queue.Remove(f.handle); err != nil {
		return err
	}
	f.suspended = false
	f.pc = 0
	tracestore.Record(types.EvCancel, id, ic.Now(), 0)

	if wasHead {
		if _, wake, _, ok := queue.PeekMin(); ok {
			ic.SetCompare(wake)
		} else {
			ic.Disarm()
		}
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// COMPARE HANDLER (TIMER LINE, CORE GOROUTINE)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// serviceCompare drains every wake entry at or before the current tick.
// Several entries can be due at once when the core was busy at higher
// priority; each is re-spawned through the dispatch path in wake order.
// Before returning, the compare is rearmed to the new head or disarmed.
func serviceCompare() {
	for {
		_, wake, id, ok := queue.PeekMin()
		if !ok {
			ic.Disarm()
			return
		}
		now := ic.Now()
		if wake > now {
			ic.SetCompare(wake)
			return
		}
		queue.PopMin()

		f := &frames[id]
		f.suspended = false
		f.late = now - wake
		if f.late > constants.LateWakeTolerance {
			tracestore.Record(types.EvLateWake, id, now, uint32(f.late))
		} else {
			tracestore.Record(types.EvWake, id, now, 0)
		}

		// A full ready queue on resume is reported, not absorbed: the spawn
		// path records the overflow (tracestore.Overflows counts it) and the
		// wake is lost to the caller's retry policy, exactly like any other
		// rejected spawn.
		_ = respawn(id)
	}
}
