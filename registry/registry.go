// ════════════════════════════════════════════════════════════════════════════════════════════════
// SYSTEM REGISTRY & STATIC ANALYSIS
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Interrupt-Priority Concurrency Runtime
// Component: Build-Time Configuration, Ceiling Computation & Validation
//
// Description:
//   The declarative front end of the runtime: tasks and shared resources are declared
//   here (by API or from a JSON system description), ceilings are computed from the
//   task-resource access graph, and every statically detectable inconsistency is
//   rejected before the scheduler starts. Nothing that passes Build needs a defensive
//   check at dispatch time — the runtime trusts the plan completely.
//
// Validation rules:
//   - Task priorities in 1..MaxPriority, names unique, table bounded
//   - Queue depths bounded; unset depth means one outstanding request
//   - Every resource names at least one existing accessor; its ceiling is
//     the maximum accessor priority
//   - The timer service priority must not sit below any suspendable task,
//     or that task's wakes could be starved unboundedly
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package registry

import (
	"os"
	"sort"

	"main/constants"
	"main/types"

	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/crypto/sha3"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// DECLARATIONS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// TaskDecl declares one task: its static priority, how many spawn requests
// may queue before the dispatcher runs it, and whether it participates in
// the suspension executor.
type TaskDecl struct {
	Name        string `json:"name"`
	Priority    uint8  `json:"priority"`
	QueueDepth  int    `json:"queue_depth"`
	Suspendable bool   `json:"suspendable"`
}

// ResourceDecl declares shared state and the set of tasks that access it.
// The ceiling is computed, never declared: declared ceilings drift.
type ResourceDecl struct {
	Name      string   `json:"name"`
	Accessors []string `json:"accessors"`
}

// SystemDecl is a complete system description, buildable from code or
// loaded from a JSON file.
type SystemDecl struct {
	Tasks         []TaskDecl     `json:"tasks"`
	Resources     []ResourceDecl `json:"resources"`
	TimerPriority uint8          `json:"timer_priority"`
}

// MisassignmentError reports a statically detectable priority or ceiling
// inconsistency. These never reach the runtime: Build rejects them.
type MisassignmentError struct {
	Subject string // Task or resource the rule failed on
	Detail  string
}

func (e *MisassignmentError) Error() string {
	return "registry: " + e.Subject + ": " + e.Detail
}

func misassigned(subject, detail string) error {
	return &MisassignmentError{Subject: subject, Detail: detail}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// DECLARATION API
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// NewSystem starts an empty declaration.
func NewSystem() *SystemDecl {
	return &SystemDecl{}
}

// Task appends a task declaration. Chainable.
func (d *SystemDecl) Task(name string, prio uint8, depth int, suspendable bool) *SystemDecl {
	d.Tasks = append(d.Tasks, TaskDecl{Name: name, Priority: prio, QueueDepth: depth, Suspendable: suspendable})
	return d
}

// Resource appends a shared-resource declaration. Chainable.
func (d *SystemDecl) Resource(name string, accessors ...string) *SystemDecl {
	d.Resources = append(d.Resources, ResourceDecl{Name: name, Accessors: accessors})
	return d
}

// Load reads a JSON system description.
func Load(path string) (*SystemDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d SystemDecl
	if err := sonnet.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// VALIDATED PLAN
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// PlanTask is a validated task with its dense runtime identifier.
type PlanTask struct {
	ID          types.TaskID
	Name        string
	Priority    uint8
	QueueDepth  int
	Suspendable bool
}

// PlanResource is a validated resource with its computed ceiling.
type PlanResource struct {
	Name    string
	Ceiling uint8
}

// Plan is the frozen output of Build: everything the dispatch layer and the
// executor need, plus a fingerprint tying traces to this exact task set.
type Plan struct {
	Tasks         []PlanTask
	Resources     []PlanResource
	TimerPriority uint8
	Fingerprint   [32]byte
}

// Ceiling looks a resource's computed ceiling up by name.
func (p *Plan) Ceiling(resource string) (uint8, bool) {
	for i := range p.Resources {
		if p.Resources[i].Name == resource {
			return p.Resources[i].Ceiling, true
		}
	}
	return 0, false
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// BUILD & VALIDATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Build validates the declaration and freezes it into a Plan. Any
// inconsistency is a MisassignmentError; a declaration that builds cleanly
// needs no runtime policing.
func (d *SystemDecl) Build() (*Plan, error) {
	if len(d.Tasks) == 0 {
		return nil, misassigned("system", "no tasks declared")
	}
	if len(d.Tasks) > constants.MaxTasks {
		return nil, misassigned("system", "task table overflow")
	}

	timerPrio := d.TimerPriority
	if timerPrio == 0 {
		timerPrio = constants.DefaultTimerPriority
	}
	if timerPrio > constants.MaxPriority {
		return nil, misassigned("timer", "priority outside 1..MaxPriority")
	}

	p := &Plan{TimerPriority: timerPrio}
	prioOf := make(map[string]uint8, len(d.Tasks))
	for i, t := range d.Tasks {
		if t.Name == "" {
			return nil, misassigned("task", "empty name")
		}
		if _, dup := prioOf[t.Name]; dup {
			return nil, misassigned(t.Name, "duplicate task name")
		}
		if t.Priority < 1 || t.Priority > constants.MaxPriority {
			return nil, misassigned(t.Name, "priority outside 1..MaxPriority")
		}
		depth := t.QueueDepth
		if depth == 0 {
			depth = constants.DefaultQueueDepth
		}
		if depth < 0 || depth > constants.MaxQueueDepth {
			return nil, misassigned(t.Name, "queue depth out of range")
		}
		if t.Suspendable && t.Priority > timerPrio {
			// The wake path runs at the timer's priority; a suspendable
			// task above it could never be woken promptly.
			return nil, misassigned(t.Name, "suspendable task outranks the timer service")
		}
		prioOf[t.Name] = t.Priority
		p.Tasks = append(p.Tasks, PlanTask{
			ID:          types.TaskID(i),
			Name:        t.Name,
			Priority:    t.Priority,
			QueueDepth:  depth,
			Suspendable: t.Suspendable,
		})
	}

	seen := make(map[string]bool, len(d.Resources))
	for _, r := range d.Resources {
		if r.Name == "" {
			return nil, misassigned("resource", "empty name")
		}
		if seen[r.Name] {
			return nil, misassigned(r.Name, "duplicate resource name")
		}
		seen[r.Name] = true
		if len(r.Accessors) == 0 {
			return nil, misassigned(r.Name, "resource has no accessors")
		}
		ceil := uint8(0)
		for _, name := range r.Accessors {
			prio, ok := prioOf[name]
			if !ok {
				return nil, misassigned(r.Name, "unknown accessor "+name)
			}
			if prio > ceil {
				ceil = prio
			}
		}
		p.Resources = append(p.Resources, PlanResource{Name: r.Name, Ceiling: ceil})
	}

	fp, err := fingerprint(d, timerPrio)
	if err != nil {
		return nil, err
	}
	p.Fingerprint = fp
	return p, nil
}

// fingerprint hashes the canonical form of the declaration: defaults
// applied, tasks and resources sorted by name, accessor sets sorted. Two
// declarations that build the same system hash identically regardless of
// declaration order.
func fingerprint(d *SystemDecl, timerPrio uint8) ([32]byte, error) {
	canon := SystemDecl{TimerPriority: timerPrio}
	canon.Tasks = append(canon.Tasks, d.Tasks...)
	for i := range canon.Tasks {
		if canon.Tasks[i].QueueDepth == 0 {
			canon.Tasks[i].QueueDepth = constants.DefaultQueueDepth
		}
	}
	sort.Slice(canon.Tasks, func(i, j int) bool { return canon.Tasks[i].Name < canon.Tasks[j].Name })

	for _, r := range d.Resources {
		acc := append([]string(nil), r.Accessors...)
		sort.Strings(acc)
		canon.Resources = append(canon.Resources, ResourceDecl{Name: r.Name, Accessors: acc})
	}
	sort.Slice(canon.Resources, func(i, j int) bool { return canon.Resources[i].Name < canon.Resources[j].Name })

	data, err := sonnet.Marshal(&canon)
	if err != nil {
		return [32]byte{}, err
	}
	return sha3.Sum256(data), nil
}
