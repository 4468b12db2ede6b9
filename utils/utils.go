package utils

import (
	"syscall"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Conversion Utilities — Zero-Alloc Casts
///////////////////////////////////////////////////////////////////////////////

// B2s converts a []byte to a string **without** allocation.
// ⚠️ Caller must ensure the input slice remains valid and unchanged.
// Used for human-readable print paths.
//
//go:nosplit
//go:inline
func B2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// S2b converts a string to a []byte **without** allocation.
// ⚠️ The returned slice must never be written through.
//
//go:nosplit
//go:inline
func S2b(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

///////////////////////////////////////////////////////////////////////////////
// Integer Formatting — Alloc-Free Decimal Conversion
///////////////////////////////////////////////////////////////////////////////

// Itoa formats a signed integer as decimal without touching strconv.
// Worst case (-9223372036854775808) fits the 20-byte scratch buffer.
//
//go:nosplit
//go:inline
func Itoa(v int) string {
	if v >= 0 {
		return Utoa(uint64(v))
	}
	return "-" + Utoa(uint64(-v))
}

// Utoa formats an unsigned integer as decimal. Single small allocation for
// the result string; used only on cold print paths.
//
//go:nosplit
//go:inline
func Utoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

///////////////////////////////////////////////////////////////////////////////
// Direct Console Output — Bypasses fmt and the log package
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes a message straight to stderr (fd 2) via the write
// syscall. No buffering, no locking, no formatting machinery. Safe to call
// from any context including the core service loop.
//
//go:nosplit
func PrintWarning(msg string) {
	b := S2b(msg)
	for len(b) > 0 {
		n, err := syscall.Write(2, b)
		if n <= 0 || err != nil {
			return
		}
		b = b[n:]
	}
}
