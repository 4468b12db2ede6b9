// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - Fallback Implementation
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Cross-Platform Compatibility Layer
//
// Description:
//   Fallback for architectures without a dedicated spin-wait hint instruction, and for
//   builds with assembly or CGO disabled. Provides API compatibility; the core loop
//   simply spins at full speed on these targets.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build (!amd64 && !arm64) || noasm || !cgo

package nvic

// cpuRelax is a no-op on platforms without a spin-wait hint. The empty body
// is eliminated entirely when inlined.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func cpuRelax() {
}
