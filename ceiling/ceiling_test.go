package ceiling

import (
	"testing"
	"time"

	"main/constants"
	"main/nvic"
)

func newIC(t *testing.T) *nvic.Controller {
	t.Helper()
	return nvic.New(time.Millisecond)
}

func expectThreshold(t *testing.T, ic *nvic.Controller, want uint8) {
	t.Helper()
	if got := ic.ReadThreshold(); got != want {
		t.Fatalf("threshold: want %d, got %d", want, got)
	}
}

func TestRaiseAndRestore(t *testing.T) {
	ic := newIC(t)
	expectThreshold(t, ic, 1)
	With(ic, 5, func() {
		expectThreshold(t, ic, 6)
	})
	expectThreshold(t, ic, 1)
}

func TestNestedRoundTrip(t *testing.T) {
	ic := newIC(t)
	With(ic, 3, func() {
		expectThreshold(t, ic, 4)
		With(ic, 7, func() {
			expectThreshold(t, ic, 8)
			With(ic, 7, func() {
				expectThreshold(t, ic, 8)
			})
			expectThreshold(t, ic, 8)
		})
		expectThreshold(t, ic, 4)
	})
	expectThreshold(t, ic, 1)
}

func TestNestedLowerCeilingNeverLowers(t *testing.T) {
	ic := newIC(t)
	With(ic, 9, func() {
		// Inner section on a lower-ceiling resource must not drop the
		// already-raised threshold.
		With(ic, 2, func() {
			expectThreshold(t, ic, 10)
		})
		expectThreshold(t, ic, 10)
	})
	expectThreshold(t, ic, 1)
}

func TestMaxPriorityMasksEverything(t *testing.T) {
	ic := newIC(t)
	With(ic, constants.MaxPriority, func() {
		expectThreshold(t, ic, constants.MaxPriority+1)
	})
	expectThreshold(t, ic, 1)
}

func TestPanicRestoresThreshold(t *testing.T) {
	ic := newIC(t)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic did not propagate")
			}
		}()
		With(ic, 8, func() {
			panic("task body failure")
		})
	}()
	expectThreshold(t, ic, 1)
}

func TestReleaseIdempotent(t *testing.T) {
	ic := newIC(t)
	g := Acquire(ic, 4)
	expectThreshold(t, ic, 5)
	g.Release()
	expectThreshold(t, ic, 1)
	g.Release()
	expectThreshold(t, ic, 1)
}

func TestMaskedPendDispatchesAtRelease(t *testing.T) {
	ic := newIC(t)
	ran := false
	if err := ic.Enable(0, 2, func() { ran = true }); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	g := Acquire(ic, 2)
	ic.Pend(0)
	ic.Preempt()
	if ran {
		t.Fatal("masked line dispatched inside the critical section")
	}
	g.Release()
	if !ran {
		t.Fatal("pended line did not dispatch at release")
	}
}

func TestHigherPriorityUnaffectedByLock(t *testing.T) {
	ic := newIC(t)
	ran := false
	if err := ic.Enable(0, 5, func() { ran = true }); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	With(ic, 2, func() {
		ic.Pend(0)
		ic.Preempt()
		if !ran {
			t.Fatal("priority above the ceiling was blocked by the lock")
		}
	})
}

func TestRandomNestingRoundTrip(t *testing.T) {
	ic := newIC(t)
	ceilings := []uint8{3, 1, 7, 15, 4, 9, 2, 11}
	var run func(depth int)
	run = func(depth int) {
		if depth == len(ceilings) {
			return
		}
		before := ic.ReadThreshold()
		With(ic, ceilings[depth], func() {
			run(depth + 1)
		})
		expectThreshold(t, ic, before)
	}
	run(0)
	expectThreshold(t, ic, 1)
}
