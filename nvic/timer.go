// ════════════════════════════════════════════════════════════════════════════════════════════════
// MONOTONIC TIMER & COMPARE INTERRUPT
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Free-Running Counter with Compare Match
//
// Description:
//   Models the monotonic timer peripheral: a free-running tick counter derived from the
//   host monotonic clock, plus a single compare register that pends a reserved interrupt
//   line when the counter passes it. A dedicated goroutine stands in for the peripheral;
//   rearming is a channel write, firing is a Pend on the timer line.
//
// Discipline:
//   - SetCompare/Disarm have a single producer: the timer-queue service code,
//     which runs on the core goroutine (or the initializing goroutine pre-Run)
//   - A compare armed in the past fires immediately; late fires past the
//     overrun tolerance are counted for deadline-miss reporting
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package nvic

import (
	"sync/atomic"
	"time"

	"main/constants"
	"main/types"
)

// disarm is the SetCompare sentinel that cancels the armed compare value.
const disarm = ^uint64(0)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// COUNTER ACCESS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Now returns the current value of the free-running tick counter.
//
//go:nosplit
//go:inline
func (c *Controller) Now() types.Tick {
	return types.Tick(time.Since(c.epoch) / c.period)
}

// TicksIn converts a duration to whole ticks, rounding up: the result is the
// smallest tick count covering d. A wake programmed for Now()+TicksIn(d)
// never lands on an earlier tick than d's end, though in wall time it can
// lead d by up to one tick period, since Now() truncates the partial tick in
// progress.
//
//go:nosplit
//go:inline
func (c *Controller) TicksIn(d time.Duration) types.Tick {
	if d <= 0 {
		return 0
	}
	return types.Tick((d + c.period - 1) / c.period)
}

// instant maps a tick back to host wall time for timer arming.
//
//go:nosplit
//go:inline
func (c *Controller) instant(t types.Tick) time.Time {
	return c.epoch.Add(time.Duration(t) * c.period)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// COMPARE REGISTER
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// StartTimer attaches the compare peripheral to a line and starts it. The
// handler servicing compare fires must already be enabled on that line.
// Call once, before Run.
func (c *Controller) StartTimer(line Line) {
	if c.timerOn {
		return
	}
	c.timerOn = true
	c.timerLn = line
	go c.timerLoop()
}

// SetCompare arms the compare register: the timer line is pended once the
// counter reaches t. Rearming replaces any previously armed value. A value
// at or before the current counter fires immediately.
//
//go:nosplit
//go:inline
func (c *Controller) SetCompare(t types.Tick) {
	c.rearm(uint64(t))
}

// Disarm cancels the armed compare value without firing it.
//
//go:nosplit
//go:inline
func (c *Controller) Disarm() {
	c.rearm(disarm)
}

// StopTimer shuts the peripheral goroutine down. Used at system teardown.
func (c *Controller) StopTimer() {
	if c.timerOn {
		c.timerOn = false
		close(c.quitC)
	}
}

// Overruns reports how many compare fires were delivered later than the
// configured tolerance. Counted at fire delivery, before queue service, so
// it captures host-scheduling latency as well as core busyness.
//
//go:nosplit
//go:inline
func (c *Controller) Overruns() uint64 {
	return atomic.LoadUint64(&c.overruns)
}

// rearm replaces the armed value. Single producer: drain then send never
// blocks and never loses the newest value.
//
//go:nosplit
func (c *Controller) rearm(v uint64) {
	select {
	case <-c.armC:
	default:
	}
	c.armC <- v
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// PERIPHERAL GOROUTINE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// timerLoop is the compare peripheral: it sleeps until the armed instant and
// pends the timer line. One fire per arm; the queue service rearms for the
// next head entry.
func (c *Controller) timerLoop() {
	tm := time.NewTimer(time.Hour)
	if !tm.Stop() {
		<-tm.C
	}
	armed := disarm
	for {
		select {
		case <-c.quitC:
			tm.Stop()
			return
		case v := <-c.armC:
			if !tm.Stop() {
				select {
				case <-tm.C:
				default:
				}
			}
			armed = v
			if v != disarm {
				tm.Reset(time.Until(c.instant(types.Tick(v))))
			}
		case <-tm.C:
			if armed != disarm {
				if now := c.Now(); now > types.Tick(armed)+constants.LateWakeTolerance {
					atomic.AddUint64(&c.overruns, 1)
				}
				armed = disarm
				c.Pend(c.timerLn)
			}
		}
	}
}
