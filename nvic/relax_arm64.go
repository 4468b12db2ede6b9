// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - ARM64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: ARM64 Spin-Wait Optimization
//
// Description:
//   Platform-specific implementation for ARM64 processors using the YIELD instruction.
//   Improves power efficiency during the core loop's spin phase by hinting the CPU
//   pipeline that the thread is busy-waiting.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build arm64 && !noasm && cgo

package nvic

/*
#ifdef __aarch64__
static inline void cpu_yield() {
    __asm__ __volatile__("yield" ::: "memory");
}
#else
#error "This file requires ARM64 architecture"
#endif
*/
import "C"

// cpuRelax emits the ARM64 YIELD instruction for efficient spin-wait loops.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func cpuRelax() {
	C.cpu_yield()
}
