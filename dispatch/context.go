// context.go — Per-task runtime surface passed to every activation.

package dispatch

import (
	"time"

	"main/ceiling"
	"main/monotonic"
	"main/nvic"
	"main/types"
)

// Context is the task-to-runtime interface handed to a body on each
// activation. One static instance per task; never retained across
// activations by the body, never shared between tasks.
type Context struct {
	id    types.TaskID
	prio  uint8
	ic    *nvic.Controller
	frame *monotonic.Frame // nil for tasks outside the suspension executor
}

// ID returns the task's identifier.
//
//go:nosplit
//go:inline
func (cx *Context) ID() types.TaskID {
	return cx.id
}

// Priority returns the task's static priority.
//
//go:nosplit
//go:inline
func (cx *Context) Priority() uint8 {
	return cx.prio
}

// Now returns the current monotonic tick.
//
//go:nosplit
//go:inline
func (cx *Context) Now() types.Tick {
	return cx.ic.Now()
}

// Spawn requests another task to run and immediately yields, so a spawned
// task of strictly higher priority preempts at this call. The capacity
// error of a full ready ring passes through to the caller.
func (cx *Context) Spawn(id types.TaskID) error {
	err := Spawn(id)
	cx.ic.Preempt()
	return err
}

// Lock runs crit as a critical section on a resource with the given
// ceiling: no task at or below the ceiling can start until crit returns,
// tasks strictly above it still preempt. Nests freely; see package ceiling.
func (cx *Context) Lock(ceil uint8, crit func()) {
	ceiling.With(cx.ic, ceil, crit)
}

// PC returns the resumption state for suspendable tasks, 0 otherwise.
//
//go:nosplit
//go:inline
func (cx *Context) PC() uint8 {
	if cx.frame == nil {
		return 0
	}
	return cx.frame.PC()
}

// Lateness reports how late the activation's wake fired, in ticks. Zero for
// non-suspendable tasks and on-time wakes.
//
//go:nosplit
//go:inline
func (cx *Context) Lateness() types.Tick {
	if cx.frame == nil {
		return 0
	}
	return cx.frame.Lateness()
}

// Frame exposes the task's continuation frame for scratch-payload access.
// Nil when the task does not participate in the suspension executor.
//
//go:nosplit
//go:inline
func (cx *Context) Frame() *monotonic.Frame {
	return cx.frame
}

// Delay suspends the task until d has elapsed; the body must return right
// after. The next activation enters with PC() == next. Tasks outside the
// executor get ErrNotSuspendable.
func (cx *Context) Delay(d time.Duration, next uint8) error {
	if cx.frame == nil {
		return monotonic.ErrNotSuspendable
	}
	return cx.frame.Delay(d, next)
}
