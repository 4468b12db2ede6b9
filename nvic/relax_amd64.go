// ════════════════════════════════════════════════════════════════════════════════════════════════
// CPU Relaxation - AMD64 Architecture
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: x86-64 Spin-Wait Optimization
//
// Description:
//   Platform-specific implementation for x86-64 processors using the PAUSE instruction.
//   Improves power efficiency during the core loop's spin phase by hinting the CPU
//   pipeline that the thread is busy-waiting.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

//go:build amd64 && !noasm && cgo

package nvic

/*
#ifdef __x86_64__
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
#else
#error "This file requires x86-64 architecture"
#endif
*/
import "C"

// cpuRelax emits the x86-64 PAUSE instruction for efficient spin-wait loops.
//
//go:norace
//go:nocheckptr
//go:nosplit
//go:inline
//go:registerparams
func cpuRelax() {
	C.cpu_pause()
}
