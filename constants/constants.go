// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: constants.go — Global runtime tunables (compile-time resolvable)
//
// Purpose:
//   - Defines system-wide constants for the interrupt controller, dispatcher
//     queues, the monotonic timer, and the trace recorder.
//   - Every queue and arena in the runtime is sized from here at build time.
//
// Notes:
//   - Power-of-2 sizing throughout so index math reduces to bit masking
//   - Priority space mirrors a 15-level threshold-register interrupt
//     controller: larger number = higher priority, 0 = idle/no activation
//
// ⚠️ No runtime logic here — all values must be compile-time resolvable
// ─────────────────────────────────────────────────────────────────────────────

package constants

import "time"

// ───────────────────────────── Priority Space ──────────────────────────────

const (
	// MaxPriority is the highest usable task priority. Raising the threshold
	// to MaxPriority+1 masks every maskable activation, which is the
	// "disable all interrupts" path of the ceiling lock.
	MaxPriority = 15

	// NumLines is the number of software-pendable interrupt lines the
	// simulated controller exposes. One 64-bit word of pending state.
	NumLines = 64

	// TimerLine is reserved for the monotonic timer compare interrupt.
	// Task bindings are allocated from line 0 upward and must stay below it.
	TimerLine = NumLines - 1

	// DefaultTimerPriority is the priority of the timer service handler.
	// The registry rejects configurations that place a suspendable task
	// above the timer, since its wakes would then be delayed unboundedly.
	DefaultTimerPriority = MaxPriority
)

// ───────────────────────────── Task & Queue Sizing ──────────────────────────

const (
	// MaxTasks bounds the static task table. Task identifiers are dense
	// indices below this value, assigned once at build time.
	MaxTasks = 256

	// DefaultQueueDepth is the per-task spawn queue depth used when a task
	// declaration leaves the depth unset: one outstanding request, which
	// keeps a lone task at its level on a dedicated line.
	DefaultQueueDepth = 1

	// MaxQueueDepth caps any single dispatcher ready queue.
	MaxQueueDepth = 1 << 10
)

// ───────────────────────────── Monotonic Timer ──────────────────────────────

const (
	// DefaultTickPeriod is the granularity of the monotonic tick counter.
	// All wake instants are expressed in whole ticks of this period.
	DefaultTickPeriod = time.Millisecond

	// LateWakeTolerance is the number of ticks a wake may trail its
	// programmed instant before it is surfaced as a timer overrun.
	LateWakeTolerance = 2
)

// ───────────────────────────── Core Service Loop ────────────────────────────

const (
	// SpinBudget is the number of failed pending-state polls before the
	// core loop relaxes the CPU. Balances dispatch latency against power.
	SpinBudget = 224

	// ParkPoll bounds how long the idle core sleeps between shutdown-flag
	// checks while parked waiting for a pend.
	ParkPoll = 200 * time.Microsecond
)

// ───────────────────────────── Trace Recorder ───────────────────────────────

const (
	// TraceRingBits sizes the in-memory scheduling event ring: 2^12 = 4096
	// entries, overwritten oldest-first. Large enough to hold the full
	// activation history of any realistic test window.
	TraceRingBits = 12
	TraceRingSize = 1 << TraceRingBits
)
