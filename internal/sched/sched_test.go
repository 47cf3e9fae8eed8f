package sched

import (
	"testing"
	"time"

	"github.com/sweeney/goldilocks/internal/clock"
)

// env records which tasks ran, in order.
type env struct {
	ran []string
}

type periodicTask struct {
	name   string
	period time.Duration
	cost   time.Duration
	clock  *clock.Fake
}

func (p *periodicTask) Name() string { return p.name }

func (p *periodicTask) Run(e *env) (time.Duration, bool) {
	e.ran = append(e.ran, p.name)
	if p.cost > 0 {
		p.clock.Advance(p.cost)
	}
	return p.period, true
}

type oneShot struct{ name string }

func (o oneShot) Name() string { return o.name }

func (o oneShot) Run(e *env) (time.Duration, bool) {
	e.ran = append(e.ran, o.name)
	return 0, false
}

type observed struct {
	names []string
	late  []time.Duration
}

func (o *observed) TaskRun(name string, took, late time.Duration) {
	o.names = append(o.names, name)
	o.late = append(o.late, late)
}

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestRunOnceEmpty(t *testing.T) {
	s := New(clock.NewFake(epoch), &env{})
	if s.RunOnce() {
		t.Error("expected no task to run on empty scheduler")
	}
}

func TestRunOnceNotDue(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)
	s.Add(oneShot{"later"}, 5*time.Second)

	c.Advance(4 * time.Second)
	if s.RunOnce() {
		t.Error("task ran before its due time")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 queued task, got %d", s.Len())
	}

	c.Advance(time.Second)
	if !s.RunOnce() {
		t.Fatal("expected task to run at its due time")
	}
	if s.Len() != 0 {
		t.Errorf("one-shot task should not be requeued, got %d queued", s.Len())
	}
}

func TestRunOnceRunsOneTaskPerCall(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)
	s.Add(oneShot{"a"}, 0)
	s.Add(oneShot{"b"}, time.Second)
	s.Add(oneShot{"c"}, 2*time.Second)

	c.Advance(10 * time.Second)
	s.RunOnce()
	if len(e.ran) != 1 {
		t.Fatalf("expected exactly 1 run, got %d", len(e.ran))
	}
	s.RunOnce()
	s.RunOnce()
	want := []string{"a", "b", "c"}
	for i, name := range want {
		if e.ran[i] != name {
			t.Errorf("run %d: expected %s, got %s", i, name, e.ran[i])
		}
	}
}

func TestAddSameNameReplaces(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)

	s.Add(oneShot{"settings save"}, 15*time.Second)
	c.Advance(10 * time.Second)
	s.Add(oneShot{"settings save"}, 15*time.Second)

	if s.Len() != 1 {
		t.Fatalf("expected 1 entry after re-add, got %d", s.Len())
	}
	due, ok := s.Due("settings save")
	if !ok {
		t.Fatal("task not queued")
	}
	if want := epoch.Add(25 * time.Second); !due.Equal(want) {
		t.Errorf("expected due %v, got %v", want, due)
	}

	c.Advance(14 * time.Second)
	if s.RunOnce() {
		t.Error("debounced task ran early")
	}
	c.Advance(time.Second)
	s.RunOnce()
	if len(e.ran) != 1 {
		t.Errorf("expected exactly one run, got %d", len(e.ran))
	}
}

func TestRepeatKeepsCadence(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)
	s.Add(&periodicTask{name: "poll", period: time.Second}, 0)

	// Run 300ms late: next due stays on the original grid.
	c.Advance(300 * time.Millisecond)
	s.RunOnce()
	due, _ := s.Due("poll")
	if want := epoch.Add(time.Second); !due.Equal(want) {
		t.Errorf("expected next due %v, got %v", want, due)
	}
}

func TestRepeatClampsWhenTooLate(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)
	s.Add(&periodicTask{name: "poll", period: time.Second}, 0)

	// Three periods late: the next run is a full period from now, not in the past.
	c.Advance(3 * time.Second)
	now := c.Now()
	s.RunOnce()
	due, _ := s.Due("poll")
	if due.Before(now) {
		t.Fatalf("next due %v is before now %v", due, now)
	}
	if want := now.Add(time.Second); !due.Equal(want) {
		t.Errorf("expected next due %v, got %v", want, due)
	}
}

func TestNeverSchedulesIntoPast(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)
	s.Add(&periodicTask{name: "slow", period: 500 * time.Millisecond, cost: 2 * time.Second, clock: c}, 0)
	s.Add(&periodicTask{name: "fast", period: 100 * time.Millisecond}, 0)

	for i := 0; i < 200; i++ {
		before := c.Now()
		if s.RunOnce() {
			for _, name := range []string{"slow", "fast"} {
				due, ok := s.Due(name)
				if ok && due.Before(before) && e.ran[len(e.ran)-1] == name {
					t.Fatalf("iteration %d: %s rescheduled at %v, before %v", i, name, due, before)
				}
			}
		}
		c.Advance(50 * time.Millisecond)
	}
}

func TestFairness(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)

	periods := map[string]time.Duration{
		"ui":        500 * time.Millisecond,
		"poll":      time.Second,
		"temp":      5 * time.Second,
		"schedule":  15 * time.Second,
		"advertise": 123 * time.Second,
	}
	for name, p := range periods {
		s.Add(&periodicTask{name: name, period: p, cost: 20 * time.Millisecond, clock: c}, 0)
	}

	total := 10 * time.Minute
	end := epoch.Add(total)
	for c.Now().Before(end) {
		s.RunOnce()
		c.Advance(10 * time.Millisecond)
	}

	counts := make(map[string]int)
	for _, name := range e.ran {
		counts[name]++
	}
	for name, p := range periods {
		want := int(total/p) - 1
		if counts[name] < want {
			t.Errorf("%s: ran %d times, expected at least %d", name, counts[name], want)
		}
	}
}

func TestObserverSeesLateness(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)
	o := &observed{}
	s.SetObserver(o)
	s.Add(oneShot{"once"}, time.Second)

	c.Advance(1500 * time.Millisecond)
	s.RunOnce()
	if len(o.names) != 1 || o.names[0] != "once" {
		t.Fatalf("unexpected observed runs: %v", o.names)
	}
	if o.late[0] != 500*time.Millisecond {
		t.Errorf("expected 500ms late, got %v", o.late[0])
	}
}

func TestNextDue(t *testing.T) {
	c := clock.NewFake(epoch)
	s := New(c, &env{})
	if _, ok := s.NextDue(); ok {
		t.Error("empty scheduler should have no next due time")
	}
	s.Add(oneShot{"b"}, 2*time.Second)
	s.Add(oneShot{"a"}, time.Second)
	due, ok := s.NextDue()
	if !ok || !due.Equal(epoch.Add(time.Second)) {
		t.Errorf("expected next due %v, got %v (ok=%v)", epoch.Add(time.Second), due, ok)
	}
}

// selfRescheduling re-adds itself with a different delay while running.
type selfRescheduling struct {
	s *Scheduler[*env]
}

func (r *selfRescheduling) Name() string { return "self" }

func (r *selfRescheduling) Run(e *env) (time.Duration, bool) {
	e.ran = append(e.ran, "self")
	r.s.Add(r, 30*time.Second)
	return time.Second, true
}

func TestReAddDuringRunWins(t *testing.T) {
	c := clock.NewFake(epoch)
	e := &env{}
	s := New(c, e)
	task := &selfRescheduling{s: s}
	s.Add(task, 0)

	s.RunOnce()
	if s.Len() != 1 {
		t.Fatalf("expected single entry, got %d", s.Len())
	}
	due, _ := s.Due("self")
	if want := epoch.Add(30 * time.Second); !due.Equal(want) {
		t.Errorf("expected due %v, got %v", want, due)
	}
}
