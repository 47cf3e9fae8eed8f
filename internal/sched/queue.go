package sched

import "time"

type entry[E any] struct {
	due   time.Time
	task  Task[E]
	index int
}

// queue is a container/heap min-heap on due time.
type queue[E any] []*entry[E]

func (q queue[E]) Len() int { return len(q) }

func (q queue[E]) Less(i, j int) bool { return q[i].due.Before(q[j].due) }

func (q queue[E]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue[E]) Push(x any) {
	e := x.(*entry[E])
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue[E]) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
