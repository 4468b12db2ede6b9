package tickq

import (
	"math/rand"
	"testing"

	"main/types"
)

// Shared Test Helpers
func expectError(t *testing.T, got, want error) {
	t.Helper()
	if got != want {
		t.Fatalf("want err %v, got %v", want, got)
	}
}

func borrowOrFatal(t *testing.T, q *Queue) Handle {
	t.Helper()
	h, err := q.Borrow()
	if err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	return h
}

func pushOrFatal(t *testing.T, q *Queue, now, wake types.Tick, h Handle, task types.TaskID) {
	t.Helper()
	if err := q.Push(now, wake, h, task); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
}

func expectSize(t *testing.T, q *Queue, want int) {
	t.Helper()
	if q.Size() != want {
		t.Fatalf("expected size=%d; got %d", want, q.Size())
	}
}

func TestPushBeyondWindow(t *testing.T) {
	q := New()
	h := borrowOrFatal(t, q)
	err := q.Push(0, Window, h, 1)
	expectError(t, err, ErrBeyondWindow)
}

func TestPushBeforeBase(t *testing.T) {
	q := New()
	h1 := borrowOrFatal(t, q)
	pushOrFatal(t, q, 100, 150, h1, 1)
	h2 := borrowOrFatal(t, q)
	// The window rebased to 100 on first push; an earlier wake is stale.
	err := q.Push(100, 50, h2, 2)
	expectError(t, err, ErrPastWindow)
}

func TestPopMinOrdering(t *testing.T) {
	q := New()
	wakes := []types.Tick{40, 10, 30, 20}
	for i, w := range wakes {
		h := borrowOrFatal(t, q)
		pushOrFatal(t, q, 0, w, h, types.TaskID(i))
	}
	var got []types.Tick
	for !q.Empty() {
		_, w, _, ok := q.PopMin()
		if !ok {
			t.Fatalf("PopMin failed with %d left", q.Size())
		}
		got = append(got, w)
	}
	want := []types.Tick{10, 20, 30, 40}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop %d: want tick %d, got %d", i, want[i], got[i])
		}
	}
}

func TestEqualInstantFIFO(t *testing.T) {
	q := New()
	for id := types.TaskID(0); id < 5; id++ {
		h := borrowOrFatal(t, q)
		pushOrFatal(t, q, 0, 7, h, id)
	}
	for want := types.TaskID(0); want < 5; want++ {
		_, _, task, ok := q.PopMin()
		if !ok || task != want {
			t.Fatalf("tie-break: want task %d, got %d (ok=%v)", want, task, ok)
		}
	}
}

func TestPeekMatchesPop(t *testing.T) {
	q := New()
	h := borrowOrFatal(t, q)
	pushOrFatal(t, q, 0, 42, h, 9)
	ph, pw, pt, ok := q.PeekMin()
	if !ok || ph != h || pw != 42 || pt != 9 {
		t.Fatalf("PeekMin: got (%v,%v,%v,%v)", ph, pw, pt, ok)
	}
	expectSize(t, q, 1)
	_, w, task, ok := q.PopMin()
	if !ok || w != 42 || task != 9 {
		t.Fatalf("PopMin: got (%v,%v,%v)", w, task, ok)
	}
	expectSize(t, q, 0)
}

func TestRemoveMiddleAndHead(t *testing.T) {
	q := New()
	h1 := borrowOrFatal(t, q)
	h2 := borrowOrFatal(t, q)
	h3 := borrowOrFatal(t, q)
	pushOrFatal(t, q, 0, 10, h1, 1)
	pushOrFatal(t, q, 0, 20, h2, 2)
	pushOrFatal(t, q, 0, 30, h3, 3)

	if err := q.Remove(h2); err != nil {
		t.Fatalf("Remove middle: %v", err)
	}
	if err := q.Remove(h1); err != nil {
		t.Fatalf("Remove head: %v", err)
	}
	_, w, task, ok := q.PopMin()
	if !ok || w != 30 || task != 3 {
		t.Fatalf("after removals: got (%v,%v,%v)", w, task, ok)
	}
	expectError(t, q.Remove(h3), ErrItemNotFound)
}

func TestRebaseOnEmpty(t *testing.T) {
	q := New()
	h := borrowOrFatal(t, q)
	pushOrFatal(t, q, 0, 5, h, 1)
	q.PopMin()

	// Far in the future relative to the first window; the rebase on the
	// empty queue must make this valid.
	h = borrowOrFatal(t, q)
	pushOrFatal(t, q, Window*10, Window*10+3, h, 2)
	_, w, _, ok := q.PopMin()
	if !ok || w != Window*10+3 {
		t.Fatalf("post-rebase pop: got (%v,%v)", w, ok)
	}
}

func TestBorrowExhaustion(t *testing.T) {
	q := New()
	for i := 0; i < capItems; i++ {
		borrowOrFatal(t, q)
	}
	_, err := q.Borrow()
	expectError(t, err, ErrFull)
}

func TestDoublePushRejected(t *testing.T) {
	q := New()
	h := borrowOrFatal(t, q)
	pushOrFatal(t, q, 0, 10, h, 1)
	expectError(t, q.Push(0, 20, h, 1), ErrItemNotFound)
}

func TestPushPopStress(t *testing.T) {
	const n = capItems
	q := New()
	perm := rand.Perm(n)
	for i := 0; i < n; i++ {
		h := borrowOrFatal(t, q)
		pushOrFatal(t, q, 0, types.Tick(perm[i]), h, types.TaskID(i))
	}
	expectSize(t, q, n)
	last := types.Tick(0)
	for !q.Empty() {
		_, w, _, ok := q.PopMin()
		if !ok {
			t.Fatal("PopMin failed mid-drain")
		}
		if w < last {
			t.Fatalf("order violation: %d after %d", w, last)
		}
		last = w
	}
}

func TestChurnReusesArena(t *testing.T) {
	q := New()
	for round := 0; round < 4*capItems; round++ {
		h := borrowOrFatal(t, q)
		pushOrFatal(t, q, types.Tick(round), types.Tick(round+1), h, 1)
		if _, _, _, ok := q.PopMin(); !ok {
			t.Fatalf("round %d: pop failed", round)
		}
	}
	expectSize(t, q, 0)
}
