package registry

import (
	"os"
	"path/filepath"
	"testing"

	"main/constants"
)

func buildOrFatal(t *testing.T, d *SystemDecl) *Plan {
	t.Helper()
	p, err := d.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p
}

func expectMisassigned(t *testing.T, d *SystemDecl, subject string) {
	t.Helper()
	_, err := d.Build()
	if err == nil {
		t.Fatalf("build accepted invalid declaration (subject %s)", subject)
	}
	me, ok := err.(*MisassignmentError)
	if !ok {
		t.Fatalf("error type %T, want *MisassignmentError", err)
	}
	if me.Subject != subject {
		t.Fatalf("subject %q, want %q", me.Subject, subject)
	}
}

func TestBuildAssignsDenseIDs(t *testing.T) {
	p := buildOrFatal(t, NewSystem().
		Task("a", 1, 0, false).
		Task("b", 2, 3, true).
		Task("c", 15, 0, false))

	if len(p.Tasks) != 3 {
		t.Fatalf("%d plan tasks", len(p.Tasks))
	}
	for i, pt := range p.Tasks {
		if int(pt.ID) != i {
			t.Fatalf("task %q id %d at index %d", pt.Name, pt.ID, i)
		}
	}
	if p.Tasks[0].QueueDepth != constants.DefaultQueueDepth {
		t.Fatalf("unset depth resolved to %d", p.Tasks[0].QueueDepth)
	}
	if p.Tasks[1].QueueDepth != 3 {
		t.Fatalf("declared depth resolved to %d", p.Tasks[1].QueueDepth)
	}
	if p.TimerPriority != constants.DefaultTimerPriority {
		t.Fatalf("timer priority defaulted to %d", p.TimerPriority)
	}
}

func TestCeilingIsMaxAccessorPriority(t *testing.T) {
	p := buildOrFatal(t, NewSystem().
		Task("lo", 1, 0, false).
		Task("mid", 4, 0, false).
		Task("hi", 9, 0, false).
		Resource("both", "lo", "mid").
		Resource("all", "lo", "mid", "hi").
		Resource("solo", "lo"))

	cases := map[string]uint8{"both": 4, "all": 9, "solo": 1}
	for name, want := range cases {
		got, ok := p.Ceiling(name)
		if !ok {
			t.Fatalf("resource %q missing", name)
		}
		if got != want {
			t.Fatalf("ceiling(%s) = %d, want %d", name, got, want)
		}
	}
	if _, ok := p.Ceiling("absent"); ok {
		t.Fatal("ceiling lookup of unknown resource succeeded")
	}
}

func TestBuildRejections(t *testing.T) {
	expectMisassigned(t, NewSystem(), "system")
	expectMisassigned(t, NewSystem().Task("", 1, 0, false), "task")
	expectMisassigned(t, NewSystem().
		Task("dup", 1, 0, false).
		Task("dup", 2, 0, false), "dup")
	expectMisassigned(t, NewSystem().Task("zero", 0, 0, false), "zero")
	expectMisassigned(t, NewSystem().Task("high", constants.MaxPriority+1, 0, false), "high")
	expectMisassigned(t, NewSystem().Task("deep", 1, constants.MaxQueueDepth+1, false), "deep")
	expectMisassigned(t, NewSystem().
		Task("a", 1, 0, false).
		Resource("", "a"), "resource")
	expectMisassigned(t, NewSystem().
		Task("a", 1, 0, false).
		Resource("r", "a").
		Resource("r", "a"), "r")
	expectMisassigned(t, NewSystem().
		Task("a", 1, 0, false).
		Resource("empty"), "empty")
	expectMisassigned(t, NewSystem().
		Task("a", 1, 0, false).
		Resource("r", "ghost"), "r")

	d := NewSystem().Task("a", 1, 0, false)
	d.TimerPriority = constants.MaxPriority + 1
	expectMisassigned(t, d, "timer")
}

func TestSuspendableMustNotOutrankTimer(t *testing.T) {
	d := NewSystem().Task("napper", 9, 0, true)
	d.TimerPriority = 5
	expectMisassigned(t, d, "napper")

	// At or below the timer priority is fine.
	d2 := NewSystem().Task("napper", 5, 0, true)
	d2.TimerPriority = 5
	buildOrFatal(t, d2)
}

func TestFingerprintIgnoresDeclarationOrder(t *testing.T) {
	a := buildOrFatal(t, NewSystem().
		Task("x", 1, 0, false).
		Task("y", 2, 0, true).
		Resource("r", "x", "y").
		Resource("s", "y"))
	b := buildOrFatal(t, NewSystem().
		Task("y", 2, 0, true).
		Task("x", 1, 0, false).
		Resource("s", "y").
		Resource("r", "y", "x"))

	if a.Fingerprint != b.Fingerprint {
		t.Fatal("reordered identical declarations fingerprint differently")
	}
}

func TestFingerprintSeesDefaults(t *testing.T) {
	a := buildOrFatal(t, NewSystem().Task("x", 1, 0, false))
	b := buildOrFatal(t, NewSystem().Task("x", 1, constants.DefaultQueueDepth, false))
	if a.Fingerprint != b.Fingerprint {
		t.Fatal("explicit default depth changed the fingerprint")
	}

	c := buildOrFatal(t, NewSystem().Task("x", 1, 2, false))
	if a.Fingerprint == c.Fingerprint {
		t.Fatal("depth change did not change the fingerprint")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.json")
	blob := `{
		"timer_priority": 12,
		"tasks": [
			{"name": "poll", "priority": 3, "queue_depth": 4},
			{"name": "nap", "priority": 2, "suspendable": true}
		],
		"resources": [
			{"name": "bus", "accessors": ["poll", "nap"]}
		]
	}`
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p := buildOrFatal(t, d)

	if p.TimerPriority != 12 {
		t.Fatalf("timer priority %d", p.TimerPriority)
	}
	if len(p.Tasks) != 2 || p.Tasks[0].Name != "poll" || p.Tasks[0].QueueDepth != 4 {
		t.Fatalf("tasks %+v", p.Tasks)
	}
	if !p.Tasks[1].Suspendable {
		t.Fatal("suspendable flag lost in load")
	}
	if ceil, _ := p.Ceiling("bus"); ceil != 3 {
		t.Fatalf("ceiling(bus) = %d", ceil)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("load of missing file succeeded")
	}
}
