// ════════════════════════════════════════════════════════════════════════════════════════════════
// Interrupt-Priority Concurrency Runtime - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Main Entry Point & System Orchestration
//
// Description:
//   Demonstration system: three suspendable tasks at priorities 1, 2, 3 delay 300, 200,
//   and 100 ms respectively, spawned together at t=0. Completion order must be the
//   priority-3 task first, then priority-2, then priority-1, and every "hello" precedes
//   every "bye". A shared completion counter guarded by the ceiling lock decides when
//   the system shuts down.
//
// Architecture:
//   - Phase 0: Declare and validate the system plan, build the task table
//   - Phase 1: Memory optimization for deterministic dispatch behavior
//   - Phase 2: Spawn the initial task set and run the core until completion
//   - Phase 3: Flush the scheduling trace for offline analysis
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"
	"time"

	"main/constants"
	"main/control"
	"main/debug"
	"main/dispatch"
	"main/nvic"
	"main/registry"
	"main/tracestore"
	"main/utils"
)

// completed counts finished tasks. Shared by all three task priorities, so
// its computed ceiling is the highest of them; every access goes through
// the ceiling lock.
var completed int

// suspendableBody returns a two-state task body: state 0 prints hello and
// arms the delay, state 1 prints bye and retires the task through the
// guarded completion counter.
func suspendableBody(label string, d time.Duration, ceil uint8, total int) dispatch.Body {
	return func(cx *dispatch.Context) {
		switch cx.PC() {
		case 0:
			debug.DropMessage(label, "hello")
			if err := cx.Delay(d, 1); err != nil {
				debug.DropError(label+" delay", err)
			}
		case 1:
			debug.DropMessage(label, "bye")
			if cx.Lateness() > constants.LateWakeTolerance {
				debug.DropMessage(label, "late by "+utils.Utoa(uint64(cx.Lateness()))+" ticks")
			}
			cx.Lock(ceil, func() {
				completed++
				if completed == total {
					control.Shutdown()
				}
			})
		}
	}
}

// main orchestrates the complete system lifecycle in distinct phases.
func main() {
	// PHASE 0: System declaration, validation, and table construction
	debug.DropMessage("INIT", "Building system plan")

	decl := registry.NewSystem().
		Task("slow", 1, 0, true).
		Task("mid", 2, 0, true).
		Task("fast", 3, 0, true).
		Resource("completion", "slow", "mid", "fast")

	plan, err := decl.Build()
	if err != nil {
		debug.DropError("PLAN", err)
		os.Exit(1)
	}
	ceil, _ := plan.Ceiling("completion")
	debug.DropMessage("PLAN", utils.Itoa(len(plan.Tasks))+" tasks, completion ceiling "+utils.Itoa(int(ceil)))

	tracestore.Enable(plan.Fingerprint)

	ic := nvic.New(constants.DefaultTickPeriod)
	bodies := map[string]dispatch.Body{
		"slow": suspendableBody("slow", 300*time.Millisecond, ceil, len(plan.Tasks)),
		"mid":  suspendableBody("mid", 200*time.Millisecond, ceil, len(plan.Tasks)),
		"fast": suspendableBody("fast", 100*time.Millisecond, ceil, len(plan.Tasks)),
	}
	if err := dispatch.Init(ic, plan, bodies); err != nil {
		debug.DropError("DISPATCH", err)
		os.Exit(1)
	}
	debug.DropMessage("READY", "System initialized")

	setupSignalHandling()

	// PHASE 1: Memory optimization for deterministic dispatch behavior
	runtime.GC()
	rtdebug.FreeOSMemory()
	rtdebug.SetGCPercent(-1)

	// PHASE 2: Spawn the initial task set and run the core
	for _, name := range []string{"slow", "mid", "fast"} {
		id, _ := dispatch.IDFor(name)
		if err := dispatch.Spawn(id); err != nil {
			debug.DropError("SPAWN "+name, err)
		}
	}
	control.ForceHot()

	done := make(chan struct{})
	ic.Run(0, done)
	<-done
	ic.StopTimer()

	// PHASE 3: Persist the scheduling trace for offline analysis
	rtdebug.SetGCPercent(100)
	if n, err := tracestore.Flush("trace.db"); err != nil {
		debug.DropError("TRACE", err)
	} else {
		debug.DropMessage("TRACE", utils.Itoa(n)+" events flushed, "+
			utils.Utoa(tracestore.LateWakes())+" late wakes")
	}
	debug.DropMessage("EXIT", "Shutdown complete")
}

// setupSignalHandling wires SIGINT/SIGTERM to a graceful core shutdown.
func setupSignalHandling() {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigC
		debug.DropMessage("SIGNAL", "Shutdown requested")
		control.Shutdown()
	}()
}
