// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Alloc-free error and status logging helper
//
// Purpose:
//   - Logs infrequent error paths without introducing heap pressure.
//   - Used only in cold paths: validation failures, flush errors, lifecycle
//     messages around the core service loop.
//
// Notes:
//   - Avoids fmt.Sprintf to minimize footprint and latency.
//   - Uses stackless logging model: no alloc beyond the message itself.
//
// ⚠️ Never invoke in hot loops — use only in diagnostics and bring-up.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import "main/utils"

// DropError logs error messages with a custom alloc-free print strategy.
// It writes directly to stderr (file descriptor 2), bypassing the log package.
//
//go:nosplit
//go:inline
//go:registerparams
func DropError(prefix string, err error) {
	if err != nil {
		msg := prefix + ": " + err.Error() + "\n"
		utils.PrintWarning(msg)
	} else {
		msg := prefix + "\n"
		utils.PrintWarning(msg)
	}
}

// DropMessage logs debug messages with zero-allocation print strategy.
// Used for cold-path diagnostics, lifecycle transitions, and test output.
//
//go:nosplit
//go:inline
//go:registerparams
func DropMessage(prefix, message string) {
	msg := prefix + ": " + message + "\n"
	utils.PrintWarning(msg)
}
