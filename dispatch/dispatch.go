// ════════════════════════════════════════════════════════════════════════════════════════════════
// INTERRUPT DISPATCH LAYER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Task Table, Line Binding & Spawn Path
//
// Description:
//   Maps each task of the validated plan onto a hardware line: a dedicated line when the
//   priority level has a spare one and the task never queues repeats, otherwise a shared
//   dispatcher line multiplexing the level's tasks through a FIFO ready ring. Spawn is
//   the single entry point for making a task runnable, from initialization, from other
//   task bodies, and from the timer executor's wake path.
//
// Guarantees:
//   - FIFO among accepted spawns at one priority level
//   - A spawn against a full ready ring returns ErrCapacity with the ring
//     untouched; it never blocks, allocates, or drops older entries
//   - Between two drained activations a dispatcher yields to strictly
//     higher-priority lines, never to its own level or below
//   - A panicking task body is contained at its activation boundary; the
//     ceiling guard's deferred restore has already run by then, so the
//     priority threshold cannot be corrupted
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package dispatch

import (
	"errors"

	"main/constants"
	"main/debug"
	"main/monotonic"
	"main/nvic"
	"main/registry"
	"main/ring8"
	"main/tracestore"
	"main/types"
)

var (
	ErrCapacity    = errors.New("dispatch: ready queue full")
	ErrUnknownTask = errors.New("dispatch: unknown task id")
	ErrNoBody      = errors.New("dispatch: plan task has no body")
	ErrNoLines     = errors.New("dispatch: not enough interrupt lines")
)

// Body is a task entry point. It runs on the core goroutine at the task's
// priority and must run to completion; suspension happens only through the
// context's Delay.
type Body func(*Context)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TASK TABLE
// ═══════════════════════════════════════════════════════════════════════════════════════════════

type taskEntry struct {
	body   Body
	cx     Context
	name   string
	line   nvic.Line
	prio   uint8
	shared bool
	ready  *ring8.Ring // Shared-dispatcher ready ring; nil for dedicated lines
}

var (
	ic       *nvic.Controller
	tasks    [constants.MaxTasks]taskEntry
	inUse    [constants.MaxTasks]bool
	byName   map[string]types.TaskID
	numTasks int
)

// Reset tears down the task table. Test support only.
func Reset() {
	ic = nil
	byName = nil
	numTasks = 0
	for i := range inUse {
		inUse[i] = false
		tasks[i] = taskEntry{}
	}
	monotonic.Reset()
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SYSTEM BUILD
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Init builds the static task table from a validated plan, binds every task
// to a line, and wires the suspension executor onto the reserved timer
// line. bodies maps plan task names to their entry points; every plan task
// must have one. Call once, before the core runs.
//
// Binding rule: a priority level with a single task of queue depth ≤ 1 gets
// a dedicated line (spawn pends it directly); any other level shares one
// dispatcher line and a FIFO ready ring sized to the level's summed depths.
func Init(c *nvic.Controller, plan *registry.Plan, bodies map[string]Body) error {
	ic = c
	byName = make(map[string]types.TaskID, len(plan.Tasks))

	for i := range plan.Tasks {
		pt := &plan.Tasks[i]
		body, found := bodies[pt.Name]
		if !found || body == nil {
			return ErrNoBody
		}
		t := &tasks[pt.ID]
		t.body = body
		t.name = pt.Name
		t.prio = pt.Priority
		inUse[pt.ID] = true
		byName[pt.Name] = pt.ID
		numTasks++
	}

	// Allocate lines level by level, from line 0 upward. The timer line at
	// the top of the space stays reserved for the executor.
	nextLine := nvic.Line(0)
	for prio := uint8(1); prio <= constants.MaxPriority; prio++ {
		var level []*registry.PlanTask
		depth := 0
		for i := range plan.Tasks {
			if pt := &plan.Tasks[i]; pt.Priority == prio {
				level = append(level, pt)
				depth += pt.QueueDepth
			}
		}
		if len(level) == 0 {
			continue
		}
		if int(nextLine) >= constants.TimerLine {
			return ErrNoLines
		}
		line := nextLine
		nextLine++

		if len(level) == 1 && level[0].QueueDepth <= 1 {
			id := level[0].ID
			tasks[id].line = line
			if err := c.Enable(line, prio, dedicatedHandler(id)); err != nil {
				return err
			}
		} else {
			ready := ring8.New(ceilPow2(depth))
			for _, pt := range level {
				tasks[pt.ID].line = line
				tasks[pt.ID].shared = true
				tasks[pt.ID].ready = ready
			}
			if err := c.Enable(line, prio, dispatcherHandler(ready)); err != nil {
				return err
			}
		}
	}

	if err := monotonic.Init(c, constants.TimerLine, plan.TimerPriority, Spawn); err != nil {
		return err
	}
	for i := range plan.Tasks {
		pt := &plan.Tasks[i]
		t := &tasks[pt.ID]
		t.cx = Context{id: pt.ID, prio: pt.Priority, ic: c}
		if pt.Suspendable {
			t.cx.frame = monotonic.Bind(pt.ID)
		}
	}
	return nil
}

// IDFor resolves a plan task name to its identifier.
func IDFor(name string) (types.TaskID, bool) {
	id, ok := byName[name]
	return id, ok
}

// ceilPow2 rounds a ready-ring capacity up to the next power of two.
func ceilPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SPAWN PATH
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Spawn makes a task runnable. Dedicated binding: pend the line, idempotent
// like hardware. Shared binding: push the id onto the level's ready ring in
// FIFO order, then pend the dispatcher; a full ring is ErrCapacity and the
// request is rejected without side effects — retry, drop, or escalate is
// the caller's decision.
//
// Callable from task bodies, the timer executor, and pre-start
// initialization; all of those are serialized, which is what the ready
// ring's SPSC discipline relies on. Spawning from a task body does not by
// itself preempt; use (*Context).Spawn for the preempting form.
//
//go:nosplit
//go:registerparams
func Spawn(id types.TaskID) error {
	if int(id) >= constants.MaxTasks || !inUse[id] {
		return ErrUnknownTask
	}
	t := &tasks[id]
	if !t.shared {
		tracestore.Record(types.EvSpawn, id, ic.Now(), 0)
		ic.Pend(t.line)
		return nil
	}
	if !t.ready.Push(uint64(id)) {
		tracestore.Record(types.EvOverflow, id, ic.Now(), uint32(t.ready.Cap()))
		return ErrCapacity
	}
	tracestore.Record(types.EvSpawn, id, ic.Now(), uint32(t.ready.Len()))
	ic.Pend(t.line)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// LINE HANDLERS (CORE GOROUTINE)
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// dedicatedHandler runs its task once per pend, unconditionally.
func dedicatedHandler(id types.TaskID) nvic.Handler {
	return func() {
		runTask(id)
	}
}

// dispatcherHandler drains the level's ready ring: every task that became
// ready at this priority runs before anything of lower priority, while
// strictly higher-priority lines still preempt between iterations.
func dispatcherHandler(ready *ring8.Ring) nvic.Handler {
	return func() {
		for {
			v, ok := ready.Pop()
			if !ok {
				return
			}
			runTask(types.TaskID(v))
			ic.Preempt()
		}
	}
}

// runTask is one activation: trace, invoke with panic containment, settle
// the continuation state.
func runTask(id types.TaskID) {
	t := &tasks[id]
	tracestore.Record(types.EvDispatch, id, ic.Now(), 0)
	invoke(t)
	if t.cx.frame != nil {
		t.cx.frame.Complete()
	}
	tracestore.Record(types.EvComplete, id, ic.Now(), 0)
}

// invoke contains a panicking body at its activation boundary. By the time
// the recover runs, every deferred ceiling release inside the body has
// executed, so the threshold is already restored; the task's line of
// execution halts, the system keeps dispatching.
func invoke(t *taskEntry) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				debug.DropError("TASK_PANIC "+t.name, err)
			} else {
				debug.DropMessage("TASK_PANIC", t.name)
			}
		}
	}()
	t.body(&t.cx)
}
