// ════════════════════════════════════════════════════════════════════════════════════════════════
// SIMULATED INTERRUPT CONTROLLER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Hardware Abstraction Shim & Core Service Loop
//
// Description:
//   Single-core interrupt controller model: 64 software-pendable lines, static per-line
//   priorities, and a programmable priority threshold register. One pinned goroutine plays
//   the processor core; handlers nest on its stack exactly like real interrupt preemption,
//   with yield checks at the runtime's safe points standing in for asynchronous entry.
//
// Priority model (threshold-register style):
//   - Levels 1..15, larger = more urgent; 0 means the core is idle
//   - A line is dispatchable iff prio >= threshold AND prio > active priority
//   - Unlocked threshold is 1; writing MaxPriority+1 masks every line
//
// Concurrency model:
//   - Pending state is a single atomic 64-bit bitmap: Pend/Unpend are safe from
//     any goroutine (timer fire, pre-start initialization)
//   - Threshold, active priority, and handler dispatch belong to the core
//     goroutine exclusively; no other goroutine may touch them
//
// Safety model:
//   - ⚠️ Handlers must not panic across the dispatcher; the dispatch layer
//     contains task-body failures before they reach the service loop
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package nvic

import (
	"errors"
	"math/bits"
	"runtime"
	"sync/atomic"
	"time"

	"main/constants"
	"main/control"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE DATA STRUCTURES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Line identifies one software-pendable interrupt line (0..NumLines-1).
type Line uint8

// Handler is the entry point installed on a line. It runs on the core
// goroutine at the line's priority and must run to completion.
type Handler func()

var (
	ErrBadLine     = errors.New("nvic: line out of range or already enabled")
	ErrBadPriority = errors.New("nvic: priority outside 1..MaxPriority")
	ErrNoHandler   = errors.New("nvic: nil handler")
)

// Controller is the simulated interrupt controller plus its monotonic timer.
// All configuration (Enable, StartTimer) happens before Run; after that the
// only cross-goroutine entry points are Pend, Unpend, Wake, and the timer.
//
//go:notinheap
//go:align 64
type Controller struct {
	// Hot word: pending-line bitmap, the only cross-goroutine mutable state.
	pending uint64   // Atomic. Bit n set = line n pended
	_       [56]byte // Cache line isolation from the static config below

	// Static configuration, frozen before Run.
	enabled   uint64                            // Bit n set = line n has a handler
	linePrio  [constants.NumLines]uint8         // Priority of each enabled line
	prioLines [constants.MaxPriority + 1]uint64 // Lines registered at each priority
	handlers  [constants.NumLines]Handler       // Installed entry points

	// Core-goroutine-only scheduling state.
	threshold uint8 // Priority threshold register; 1 = unlocked
	active    uint8 // Priority of the handler currently in service; 0 = idle

	// Park/wake signalling for the idle core.
	wake chan struct{}

	// Monotonic timer state (timer.go).
	epoch    time.Time
	period   time.Duration
	armC     chan uint64
	quitC    chan struct{}
	timerOn  bool
	timerLn  Line
	overruns uint64 // Atomic. Count of compare fires delivered late (timer.go)
}

// New creates a controller with the given monotonic tick period. The tick
// period is fixed for the controller's lifetime; pass
// constants.DefaultTickPeriod unless a test needs coarser ticks.
func New(period time.Duration) *Controller {
	if period <= 0 {
		period = constants.DefaultTickPeriod
	}
	return &Controller{
		threshold: 1,
		wake:      make(chan struct{}, 1),
		epoch:     time.Now(),
		period:    period,
		armC:      make(chan uint64, 1),
		quitC:     make(chan struct{}),
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// LINE CONFIGURATION (PRE-RUN)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Enable installs a handler on a line at a fixed priority. Must complete
// before Run starts; lines cannot be re-bound while the core is live.
func (c *Controller) Enable(line Line, prio uint8, h Handler) error {
	if int(line) >= constants.NumLines || c.enabled&(1<<line) != 0 {
		return ErrBadLine
	}
	if prio < 1 || prio > constants.MaxPriority {
		return ErrBadPriority
	}
	if h == nil {
		return ErrNoHandler
	}
	c.enabled |= 1 << line
	c.linePrio[line] = prio
	c.prioLines[prio] |= 1 << line
	c.handlers[line] = h
	return nil
}

// LinePriority reports the priority a line was enabled at (0 if disabled).
//
//go:nosplit
//go:inline
func (c *Controller) LinePriority(line Line) uint8 {
	return c.linePrio[line]
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PEND / UNPEND (ANY GOROUTINE)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Pend marks a line for dispatch and wakes the core if it is parked.
// Idempotent: pending a pended line is a no-op, as in hardware.
//
//go:norace
//go:nosplit
//go:inline
//go:registerparams
func (c *Controller) Pend(line Line) {
	atomic.OrUint64(&c.pending, 1<<line)
	control.SignalActivity()
	c.Wake()
}

// Unpend withdraws a pending request before it dispatches.
//
//go:norace
//go:nosplit
//go:inline
//go:registerparams
func (c *Controller) Unpend(line Line) {
	atomic.AndUint64(&c.pending, ^(uint64(1) << line))
}

// Pended reports whether a line is currently pending.
//
//go:nosplit
//go:inline
func (c *Controller) Pended(line Line) bool {
	return atomic.LoadUint64(&c.pending)&(1<<line) != 0
}

// Wake unparks the core service loop without pending anything. Non-blocking.
//
//go:nosplit
//go:inline
func (c *Controller) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PRIORITY THRESHOLD REGISTER (CORE GOROUTINE ONLY)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ReadThreshold returns the current priority threshold. Levels below the
// threshold cannot dispatch. 1 means fully unlocked.
//
//go:nosplit
//go:inline
func (c *Controller) ReadThreshold() uint8 {
	return c.threshold
}

// WriteThreshold sets the priority threshold register. Lowering the
// threshold does not by itself dispatch anything that became eligible;
// the caller must follow with Preempt, which the ceiling guard does.
//
//go:nosplit
//go:inline
func (c *Controller) WriteThreshold(level uint8) {
	c.threshold = level
}

// ActivePriority returns the priority of the handler currently in service,
// or 0 when the core is idle.
//
//go:nosplit
//go:inline
func (c *Controller) ActivePriority() uint8 {
	return c.active
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// DISPATCH ENGINE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Preempt is the cooperative yield check: it dispatches every pendable line
// whose priority exceeds both the threshold floor and the active priority,
// nesting handlers on the current stack, and returns when nothing above the
// caller remains pendable. The runtime calls it at its safe points (spawn,
// lock release, between dispatcher drains); it may only run on the core
// goroutine or, before Run starts, on the initializing goroutine.
func (c *Controller) Preempt() {
	c.service()
}

// service drains dispatchable lines in strict priority order. Returns true
// if at least one handler ran.
func (c *Controller) service() bool {
	progressed := false
	for {
		prio, line, ok := c.highestPendable()
		if !ok {
			return progressed
		}
		atomic.AndUint64(&c.pending, ^(uint64(1) << line))

		// Nested dispatch: the line's priority becomes the active priority
		// for the duration of its handler, exactly like hardware in-service
		// state. Same-priority lines cannot re-enter.
		prev := c.active
		c.active = prio
		c.handlers[line]()
		c.active = prev
		progressed = true
	}
}

// highestPendable scans the pending bitmap for the most urgent dispatchable
// line. Per-priority line masks make this a handful of word tests; within
// one priority, the lowest-numbered line wins.
//
//go:nosplit
//go:inline
func (c *Controller) highestPendable() (uint8, Line, bool) {
	pend := atomic.LoadUint64(&c.pending) & c.enabled
	if pend == 0 {
		return 0, 0, false
	}
	floor := c.threshold
	if floor < 1 {
		floor = 1
	}
	if c.active >= floor {
		floor = c.active + 1
	}
	if floor > constants.MaxPriority {
		return 0, 0, false
	}
	for p := uint8(constants.MaxPriority); p >= floor; p-- {
		if m := pend & c.prioLines[p]; m != 0 {
			return p, Line(bits.TrailingZeros64(m)), true
		}
	}
	return 0, 0, false
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CORE SERVICE LOOP
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Run launches the core service goroutine pinned to the given CPU. The
// goroutine dispatches until the control package signals shutdown, adapting
// its polling between hot spinning and parked waiting. done is closed when
// the core exits.
//
// THREADING MODEL:
//
//	The goroutine locks to an OS thread and sets CPU affinity so nested
//	handler dispatch sees consistent cache and scheduling behavior.
func (c *Controller) Run(core int, done chan<- struct{}) {
	go func() {
		defer close(done)
		runtime.LockOSThread()
		setAffinity(core)

		hotFlag, stopFlag := control.Flags()
		idle := 0
		for {
			if *stopFlag != 0 {
				return
			}
			if c.service() {
				idle = 0
				continue
			}
			control.PollCooldown()
			if *hotFlag == 1 || idle < constants.SpinBudget {
				idle++
				cpuRelax()
				continue
			}
			// Idle beyond the spin budget: park until a pend arrives.
			// The poll timeout bounds shutdown latency while parked.
			select {
			case <-c.wake:
				idle = 0
			case <-time.After(constants.ParkPoll):
			}
		}
	}()
}
