// ============================================================================
// CORE RUNTIME IDENTIFIERS AND TRACE RECORDS
// ============================================================================

// Package types holds the identifier types shared by every runtime layer and
// the fixed-layout scheduling event record written by the hot path.
//
// These are deliberately small value types: they cross package boundaries on
// every activation and must never force an allocation or an interface box.
package types

// TaskID is a dense index into the static task table, assigned once when the
// registry builds the system plan. Valid IDs are below constants.MaxTasks.
type TaskID uint16

// Priority is a hardware interrupt priority level. Larger is more urgent.
// Zero means "idle" and is never a valid task priority.
type Priority uint8

// Tick is a count of monotonic timer periods since the controller started.
// All wake instants and trace timestamps are expressed in ticks.
type Tick uint64

// ============================================================================
// SCHEDULING EVENT RECORDS
// ============================================================================

// EventKind discriminates trace ring entries.
type EventKind uint8

const (
	EvSpawn    EventKind = iota + 1 // Spawn request accepted into a queue/line
	EvDispatch                      // Task body invocation began
	EvComplete                      // Task body returned
	EvSuspend                       // Task armed a delay and yielded
	EvWake                          // Timer service re-spawned a suspended task
	EvLateWake                      // Wake fired beyond the overrun tolerance
	EvOverflow                      // Spawn rejected: dispatcher queue full
	EvCancel                        // Pending wake explicitly withdrawn
)

// Event is one scheduling trace record. Fixed 16-byte layout so the trace
// ring is a flat array with no pointers for the collector to chase.
//
// IMPORTANT: Events are written from dispatch and timer hot paths. Field
// order keeps the 8-byte timestamp first for natural alignment.
//
//go:notinheap
type Event struct {
	When Tick      // 8B - Tick at which the event was recorded
	Arg  uint32    // 4B - Kind-specific payload (lateness, queue depth, ...)
	Task TaskID    // 2B - Subject task
	Kind EventKind // 1B - Event discriminator
	_    [1]byte   // 1B - Padding to 16 bytes
}
