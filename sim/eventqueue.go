package sim

import "container/heap"

// An EventQueue holds scheduled events ordered by tick, FIFO among events
// scheduled for the same tick (spec.md §5: "events scheduled for the same
// tick execute in FIFO order of scheduling").
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Peek() Event
	Len() int
}

// NewEventQueue creates an empty, heap-backed EventQueue.
func NewEventQueue() EventQueue {
	q := &eventQueueImpl{}
	heap.Init(&q.items)
	return q
}

type seqEvent struct {
	evt Event
	seq uint64
}

type eventHeap []seqEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	ti, tj := h[i].evt.Time(), h[j].evt.Time()
	if ti != tj {
		return ti < tj
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(seqEvent))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

type eventQueueImpl struct {
	items   eventHeap
	nextSeq uint64
}

// Push inserts evt, tagging it with a monotonically increasing sequence
// number so that equal-tick events pop in scheduling order.
func (q *eventQueueImpl) Push(evt Event) {
	heap.Push(&q.items, seqEvent{evt: evt, seq: q.nextSeq})
	q.nextSeq++
}

// Pop removes and returns the earliest-scheduled event.
func (q *eventQueueImpl) Pop() Event {
	se := heap.Pop(&q.items).(seqEvent)
	return se.evt
}

// Peek returns the earliest-scheduled event without removing it.
func (q *eventQueueImpl) Peek() Event {
	return q.items[0].evt
}

// Len reports the number of pending events.
func (q *eventQueueImpl) Len() int {
	return len(q.items)
}
