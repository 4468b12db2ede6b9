// control.go — Global control flags and activity management for the core loop
// ============================================================================
// SYSTEM CONTROL ORCHESTRATION
// ============================================================================
//
// Control package provides lightweight global signaling infrastructure for
// coordinating the core service loop's activity state and graceful shutdown
// with zero-allocation flag access.
//
// Architecture overview:
//   • Global hot/stop flags for lock-free cross-goroutine communication
//   • Nanosecond-precision activity tracking with automatic cooldown
//   • Zero-allocation flag access for the dispatch hot path
//   • Graceful shutdown coordination between producers and the core
//
// Threading model:
//   • Pend producers (timer goroutine, initialization) signal activity
//   • The core service loop polls flags between dispatch rounds
//   • Automatic cooldown prevents unnecessary hot spinning when idle
//   • Shutdown is sticky: once set, the core drains and exits

package control

import "time"

// ============================================================================
// GLOBAL STATE MANAGEMENT
// ============================================================================

var (
	// Global coordination flags - polled by the core service loop
	hot  uint32 // Activity indicator: 1 = pend traffic expected, 0 = idle
	stop uint32 // Shutdown signal: 1 = drain and exit, 0 = running

	// Activity timing for automatic cooldown management
	lastHot    int64                    // Nanosecond timestamp of last pend activity
	cooldownNs = int64(1 * time.Second) // Idle period before leaving hot mode
)

// ============================================================================
// ACTIVITY SIGNALING
// ============================================================================

// SignalActivity marks the system as active and records precise timing for
// automatic cooldown management. Called whenever an interrupt line is pended
// from outside the core (timer fire, pre-start spawn).
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func SignalActivity() {
	hot = 1
	lastHot = time.Now().UnixNano()
}

// ForceHot pins the activity flag without recording a timestamp, so the
// cooldown never clears it. Used when entering a phase of sustained traffic.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func ForceHot() {
	hot = 1
	lastHot = 1<<63 - 1
}

// ============================================================================
// COOLDOWN MANAGEMENT
// ============================================================================

// PollCooldown implements automatic hot-flag clearance based on elapsed time
// since the last activity. Runs inline in the core loop between dispatch
// rounds to stop spinning during idle periods.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func PollCooldown() {
	if hot == 1 && time.Now().UnixNano()-lastHot > cooldownNs {
		hot = 0
	}
}

// ============================================================================
// SYSTEM SHUTDOWN
// ============================================================================

// Shutdown initiates graceful termination by setting the global stop flag.
// The core service loop finishes its current dispatch round, drains nothing
// further, and returns.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func Shutdown() {
	stop = 1
}

// Reset clears all coordination state. Test support only; never called while
// a core loop is running.
//
//go:norace
//go:nosplit
func Reset() {
	hot, stop, lastHot = 0, 0, 0
}

// ============================================================================
// FLAG ACCESS
// ============================================================================

// Flags returns direct pointers to the global coordination flags for
// zero-overhead polling by the core service loop.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func Flags() (hotFlag, stopFlag *uint32) {
	return &hot, &stop
}
