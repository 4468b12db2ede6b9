// ════════════════════════════════════════════════════════════════════════════════════════════════
// SCHEDULING FLIGHT RECORDER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Trace Ring & SQLite Persistence
//
// Description:
//   Bounded in-memory ring of scheduling events (spawn, dispatch, wake, late wake, queue
//   overflow) written alloc-free from the dispatch and timer hot paths, plus an offline
//   flush to SQLite for deadline-miss analysis. The flush stores the plan fingerprint so
//   a trace can always be matched to the exact task set that produced it.
//
// Hot-path discipline:
//   - Record is a masked array store and a counter increment; no locks, no
//     allocation, no branching beyond the enable check
//   - Single writer: all recording sites run on the core goroutine (or the
//     initializing goroutine before the core starts)
//   - Flush and summaries are cold teardown/analysis paths only
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package tracestore

import (
	"database/sql"
	"encoding/hex"

	"main/constants"
	"main/types"

	_ "github.com/mattn/go-sqlite3"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// GLOBAL RING STATE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

var (
	ring    [constants.TraceRingSize]types.Event
	cursor  uint64 // Total events ever recorded; ring index = cursor & mask
	enabled bool
	planFP  [32]byte // Fingerprint of the validated plan this trace belongs to

	lateWakes uint64 // Running count of EvLateWake records
	overflows uint64 // Running count of EvOverflow records
)

// Enable switches recording on and stamps the trace with the plan
// fingerprint. Called once during bring-up, after the registry validates.
func Enable(fingerprint [32]byte) {
	planFP = fingerprint
	enabled = true
}

// Reset clears the ring and counters. Test support only.
func Reset() {
	cursor, lateWakes, overflows, enabled = 0, 0, 0, false
	planFP = [32]byte{}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// HOT-PATH RECORDING
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Record appends one scheduling event, overwriting the oldest entry when the
// ring is full. Single writer; see package notes.
//
//go:norace
//go:nosplit
//go:inline
//go:registerparams
func Record(kind types.EventKind, task types.TaskID, when types.Tick, arg uint32) {
	if !enabled {
		return
	}
	e := &ring[cursor&(constants.TraceRingSize-1)]
	e.When, e.Arg, e.Task, e.Kind = when, arg, task, kind
	cursor++
	switch kind {
	case types.EvLateWake:
		lateWakes++
	case types.EvOverflow:
		overflows++
	}
}

// LateWakes reports the number of late-wake events recorded so far. This is
// the runtime-visible face of the timer overrun taxonomy: callers poll it to
// detect deadline misses without reading the ring.
//
//go:nosplit
//go:inline
func LateWakes() uint64 {
	return lateWakes
}

// Overflows reports the number of rejected spawns recorded so far.
//
//go:nosplit
//go:inline
func Overflows() uint64 {
	return overflows
}

// Recorded reports the total number of events ever recorded (not clamped to
// the ring size).
//
//go:nosplit
//go:inline
func Recorded() uint64 {
	return cursor
}

// Snapshot copies the retained events, oldest first. Cold path; allocates.
func Snapshot() []types.Event {
	n := cursor
	if n > constants.TraceRingSize {
		n = constants.TraceRingSize
	}
	out := make([]types.Event, 0, n)
	start := cursor - n
	for i := start; i < cursor; i++ {
		out = append(out, ring[i&(constants.TraceRingSize-1)])
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SQLITE PERSISTENCE (COLD PATH)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Flush persists the retained events and the plan fingerprint to a SQLite
// database at path, creating the schema if needed. Returns the number of
// events written. Called at teardown or from analysis tooling, never from
// the dispatch path.
func Flush(path string) (int, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trace_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			fingerprint TEXT NOT NULL,
			late_wakes INTEGER NOT NULL,
			overflows INTEGER NOT NULL,
			recorded INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trace_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			task INTEGER NOT NULL,
			kind INTEGER NOT NULL,
			arg INTEGER NOT NULL
		);`)
	if err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(
		"INSERT OR REPLACE INTO trace_meta (id, fingerprint, late_wakes, overflows, recorded) VALUES (1, ?, ?, ?, ?)",
		hex.EncodeToString(planFP[:]), lateWakes, overflows, cursor)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	stmt, err := tx.Prepare("INSERT INTO trace_events (tick, task, kind, arg) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	events := Snapshot()
	for i := range events {
		e := &events[i]
		if _, err := stmt.Exec(int64(e.When), int64(e.Task), int64(e.Kind), int64(e.Arg)); err != nil {
			stmt.Close()
			tx.Rollback()
			return 0, err
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(events), nil
}

// LateWakeCount reads the persisted late-wake total back from a flushed
// trace database. Analysis helper for deadline-miss reporting.
func LateWakeCount(path string) (uint64, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n uint64
	err = db.QueryRow("SELECT late_wakes FROM trace_meta WHERE id = 1").Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
