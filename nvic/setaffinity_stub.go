// setaffinity_stub.go - CPU affinity no-op for platforms without
// sched_setaffinity(2). Keeps the API surface identical so the core loop
// needs no conditional compilation.

//go:build !linux || tinygo

package nvic

// setAffinity is a no-op on unsupported platforms.
//
//go:nosplit
//go:inline
func setAffinity(cpu int) {
	// No-op implementation for platform compatibility
}
