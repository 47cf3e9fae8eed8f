// Package sched runs named tasks on a single thread, most overdue first.
//
// A Scheduler never blocks: the caller polls RunOnce from its own loop and
// does other work (watchdog, UI) between calls. At most one task runs per
// call, so tasks never run concurrently and the state they share needs no
// locking.
package sched

import (
	"container/heap"
	"log"
	"time"

	"github.com/sweeney/goldilocks/internal/clock"
)

// DefaultSlowThreshold is the run time above which a task is logged.
const DefaultSlowThreshold = 80 * time.Millisecond

// Task is a named unit of work run with an environment E.
// Run returns the delay before the next run and whether to run again at all.
// Tasks must handle their own errors; a panic is fatal to the process.
type Task[E any] interface {
	Name() string
	Run(env E) (again time.Duration, repeat bool)
}

// Observer is notified after every task run.
type Observer interface {
	TaskRun(name string, took, late time.Duration)
}

// Scheduler orders pending tasks by due time.
type Scheduler[E any] struct {
	clock    clock.Clock
	env      E
	queue    queue[E]
	byName   map[string]*entry[E]
	slow     time.Duration
	observer Observer
}

// New creates a Scheduler that passes env to every task it runs.
func New[E any](c clock.Clock, env E) *Scheduler[E] {
	return &Scheduler[E]{
		clock:  c,
		env:    env,
		byName: make(map[string]*entry[E]),
		slow:   DefaultSlowThreshold,
	}
}

// SetObserver registers an observer for task runs.
func (s *Scheduler[E]) SetObserver(o Observer) {
	s.observer = o
}

// SetSlowThreshold changes the run time above which a task is logged.
func (s *Scheduler[E]) SetSlowThreshold(d time.Duration) {
	s.slow = d
}

// Add schedules task to run after delay. If a task with the same name is
// already queued, its entry is moved to the new due time instead of being
// duplicated.
func (s *Scheduler[E]) Add(task Task[E], delay time.Duration) {
	due := s.clock.Now().Add(delay)
	if e, ok := s.byName[task.Name()]; ok {
		e.task = task
		e.due = due
		heap.Fix(&s.queue, e.index)
		return
	}
	log.Printf("sched: add task %q in %v", task.Name(), delay)
	s.push(task, due)
}

// RunOnce runs the earliest task if it is due. It reports whether a task ran.
func (s *Scheduler[E]) RunOnce() bool {
	if len(s.queue) == 0 {
		return false
	}
	start := s.clock.Now()
	next := s.queue[0]
	if next.due.After(start) {
		return false
	}
	heap.Pop(&s.queue)
	delete(s.byName, next.task.Name())

	again, repeat := next.task.Run(s.env)

	end := s.clock.Now()
	took := end.Sub(start)
	if took > s.slow {
		log.Printf("sched: %s took %v (again=%v repeat=%v)", next.task.Name(), took, again, repeat)
	}
	if s.observer != nil {
		s.observer.TaskRun(next.task.Name(), took, start.Sub(next.due))
	}

	if !repeat {
		return true
	}
	// A task re-added while it ran keeps that schedule.
	if _, ok := s.byName[next.task.Name()]; ok {
		return true
	}
	due := next.due.Add(again)
	if floor := start.Add(again); due.Before(floor) {
		due = floor
	}
	s.push(next.task, due)
	return true
}

// NextDue returns the due time of the earliest task.
func (s *Scheduler[E]) NextDue() (time.Time, bool) {
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].due, true
}

// Due returns when the named task is next due.
func (s *Scheduler[E]) Due(name string) (time.Time, bool) {
	e, ok := s.byName[name]
	if !ok {
		return time.Time{}, false
	}
	return e.due, true
}

// Len returns the number of queued tasks.
func (s *Scheduler[E]) Len() int {
	return len(s.queue)
}

func (s *Scheduler[E]) push(task Task[E], due time.Time) {
	e := &entry[E]{task: task, due: due}
	heap.Push(&s.queue, e)
	s.byName[task.Name()] = e
}
