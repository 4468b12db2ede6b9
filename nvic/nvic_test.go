package nvic

import (
	"testing"
	"time"

	"main/constants"
	"main/control"
)

func TestEnableValidation(t *testing.T) {
	c := New(time.Millisecond)
	h := func() {}

	if err := c.Enable(constants.NumLines, 1, h); err != ErrBadLine {
		t.Fatalf("out-of-range line: %v", err)
	}
	if err := c.Enable(0, 0, h); err != ErrBadPriority {
		t.Fatalf("priority 0: %v", err)
	}
	if err := c.Enable(0, constants.MaxPriority+1, h); err != ErrBadPriority {
		t.Fatalf("priority 16: %v", err)
	}
	if err := c.Enable(0, 1, nil); err != ErrNoHandler {
		t.Fatalf("nil handler: %v", err)
	}
	if err := c.Enable(0, 1, h); err != nil {
		t.Fatalf("valid enable: %v", err)
	}
	if err := c.Enable(0, 2, h); err != ErrBadLine {
		t.Fatalf("double enable: %v", err)
	}
}

func TestDispatchPriorityOrder(t *testing.T) {
	c := New(time.Millisecond)
	var order []int
	mk := func(tag int) Handler { return func() { order = append(order, tag) } }

	if err := c.Enable(0, 1, mk(1)); err != nil {
		t.Fatal(err)
	}
	if err := c.Enable(1, 3, mk(3)); err != nil {
		t.Fatal(err)
	}
	if err := c.Enable(2, 2, mk(2)); err != nil {
		t.Fatal(err)
	}

	c.Pend(0)
	c.Pend(1)
	c.Pend(2)
	c.Preempt()

	want := []int{3, 2, 1}
	if len(order) != 3 {
		t.Fatalf("dispatched %d handlers", len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order %v, want %v", order, want)
		}
	}
}

func TestSamePriorityLowestLineFirst(t *testing.T) {
	c := New(time.Millisecond)
	var order []Line
	mk := func(l Line) Handler { return func() { order = append(order, l) } }

	c.Enable(5, 4, mk(5))
	c.Enable(2, 4, mk(2))
	c.Pend(5)
	c.Pend(2)
	c.Preempt()

	if len(order) != 2 || order[0] != 2 || order[1] != 5 {
		t.Fatalf("line order %v", order)
	}
}

func TestNestedPreemption(t *testing.T) {
	c := New(time.Millisecond)
	var order []string

	c.Enable(1, 5, func() { order = append(order, "high") })
	c.Enable(2, 3, func() { order = append(order, "peer-pended") })
	c.Enable(0, 3, func() {
		order = append(order, "low-start")
		c.Pend(1) // strictly higher: must nest here
		c.Pend(2) // same priority: must wait for this handler to finish
		c.Preempt()
		order = append(order, "low-end")
	})

	c.Pend(0)
	c.Preempt()

	want := []string{"low-start", "high", "low-end", "peer-pended"}
	if len(order) != len(want) {
		t.Fatalf("order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order %v, want %v", order, want)
		}
	}
}

func TestThresholdMasksDispatch(t *testing.T) {
	c := New(time.Millisecond)
	ran := map[uint8]bool{}
	for _, p := range []uint8{2, 6} {
		p := p
		line := Line(p)
		if err := c.Enable(line, p, func() { ran[p] = true }); err != nil {
			t.Fatal(err)
		}
		c.Pend(line)
	}

	c.WriteThreshold(5)
	c.Preempt()
	if ran[2] {
		t.Fatal("priority below threshold dispatched")
	}
	if !ran[6] {
		t.Fatal("priority above threshold blocked")
	}

	c.WriteThreshold(1)
	c.Preempt()
	if !ran[2] {
		t.Fatal("pend lost after threshold restore")
	}
}

func TestUnpendWithdraws(t *testing.T) {
	c := New(time.Millisecond)
	ran := false
	c.Enable(0, 1, func() { ran = true })
	c.Pend(0)
	if !c.Pended(0) {
		t.Fatal("Pended after Pend is false")
	}
	c.Unpend(0)
	c.Preempt()
	if ran || c.Pended(0) {
		t.Fatal("unpended line dispatched")
	}
}

func TestRunLoopServicesAsyncPend(t *testing.T) {
	control.Reset()
	defer control.Reset()

	c := New(time.Millisecond)
	fired := make(chan struct{})
	c.Enable(0, 1, func() { close(fired) })

	done := make(chan struct{})
	c.Run(0, done)

	c.Pend(0)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("core loop never serviced the pend")
	}

	control.Shutdown()
	c.Wake()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("core loop did not shut down")
	}
}

func TestTimerCompareFires(t *testing.T) {
	control.Reset()
	defer control.Reset()

	c := New(time.Millisecond)
	fired := make(chan struct{})
	c.Enable(constants.TimerLine, constants.MaxPriority, func() { close(fired) })
	c.StartTimer(constants.TimerLine)
	defer c.StopTimer()

	done := make(chan struct{})
	c.Run(0, done)
	defer func() {
		control.Shutdown()
		c.Wake()
		<-done
	}()

	c.SetCompare(c.Now() + 20)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("compare never fired")
	}
}

func TestDisarmCancelsCompare(t *testing.T) {
	control.Reset()
	defer control.Reset()

	c := New(time.Millisecond)
	fired := make(chan struct{}, 1)
	c.Enable(constants.TimerLine, constants.MaxPriority, func() { fired <- struct{}{} })
	c.StartTimer(constants.TimerLine)
	defer c.StopTimer()

	done := make(chan struct{})
	c.Run(0, done)
	defer func() {
		control.Shutdown()
		c.Wake()
		<-done
	}()

	c.SetCompare(c.Now() + 50)
	c.Disarm()
	select {
	case <-fired:
		t.Fatal("disarmed compare fired")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTicksInRoundsUp(t *testing.T) {
	c := New(time.Millisecond)
	if got := c.TicksIn(0); got != 0 {
		t.Fatalf("TicksIn(0) = %d", got)
	}
	if got := c.TicksIn(time.Microsecond); got != 1 {
		t.Fatalf("TicksIn(1µs) = %d", got)
	}
	if got := c.TicksIn(10 * time.Millisecond); got != 10 {
		t.Fatalf("TicksIn(10ms) = %d", got)
	}
	if got := c.TicksIn(10*time.Millisecond + time.Microsecond); got != 11 {
		t.Fatalf("TicksIn(10ms+1µs) = %d", got)
	}
}
