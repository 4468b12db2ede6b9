// ════════════════════════════════════════════════════════════════════════════════════════════════
// PRIORITY CEILING LOCK
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Ceiling-Protocol Mutual Exclusion
//
// Description:
//   Mutual exclusion without blocking, spinning, or deadlock. Entering a critical section
//   raises the controller's priority threshold to ceiling+1: every task at or below the
//   ceiling is prevented from starting, so no contender can run until the section exits.
//   Tasks strictly above the ceiling still preempt, and priority inversion for any task
//   is bounded by the length of one critical section at its ceiling.
//
// Discipline:
//   - Scoped acquisition only: the guard restores the threshold it observed on every
//     exit path, including panics. Never pair raise/lower calls by hand.
//   - Nested sections compose: a guard never lowers an already-raised threshold, and
//     release restores the observed value, not a global "unlocked" level.
//   - Core-goroutine (task/handler context) only: the threshold register is
//     core-local state.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package ceiling

import (
	"main/constants"
	"main/nvic"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SCOPED GUARD
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Guard is a scoped threshold raise. Acquire it, defer Release, touch the
// protected state in between. Zero value is an already-released guard.
type Guard struct {
	ic       *nvic.Controller
	observed uint8 // Threshold at acquisition; restored exactly on release
	raised   bool  // False when the section was already covered (nested)
	done     bool  // Release idempotence
}

// Acquire raises the priority threshold to cover a resource with the given
// ceiling. A ceiling of MaxPriority takes the mask-everything path, the
// analogue of disabling interrupts globally where the hardware has no finer
// control at that level; every other ceiling writes ceiling+1 so that all
// priorities at or below the ceiling are held off.
//
// Raise-only rule: if the observed threshold already covers the ceiling
// (nested section, or a task whose own priority masks all contenders), the
// register is left untouched so an outer guard's raise is never lowered.
//
//go:nosplit
//go:inline
func Acquire(ic *nvic.Controller, ceil uint8) Guard {
	g := Guard{ic: ic, observed: ic.ReadThreshold()}

	var target uint8
	if ceil >= constants.MaxPriority {
		// Mask everything, including the highest maskable level.
		target = constants.MaxPriority + 1
	} else {
		target = ceil + 1
	}
	if target > g.observed {
		ic.WriteThreshold(target)
		g.raised = true
	}
	return g
}

// Release restores the threshold observed at acquisition and dispatches
// anything that became eligible while the section was masked. Idempotent;
// safe to call from a defer after an early return or panic.
func (g *Guard) Release() {
	if g.done {
		return
	}
	g.done = true
	if g.raised {
		g.ic.WriteThreshold(g.observed)
		// A contender pended while masked dispatches here, at the release
		// point, if it outranks the running task.
		g.ic.Preempt()
	}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// CLOSURE FORM
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// With runs crit with the threshold raised to cover ceil. The threshold is
// restored on every exit path; a panic inside crit propagates after the
// restore, so a failing task body cannot corrupt the system ceiling.
func With(ic *nvic.Controller, ceil uint8, crit func()) {
	g := Acquire(ic, ceil)
	defer g.Release()
	crit()
}
