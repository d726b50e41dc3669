package queue

import (
	"container/heap"
	"time"
)

type entry[T any] struct {
	value   T
	readyAt time.Time
	seq     uint64
}

// entries implements heap.Interface ordered by readyAt, then by insertion
// sequence so that equal deadlines leave in FIFO order.
type entries[T any] []entry[T]

func (e entries[T]) Len() int { return len(e) }

func (e entries[T]) Less(i, j int) bool {
	if e[i].readyAt.Equal(e[j].readyAt) {
		return e[i].seq < e[j].seq
	}
	return e[i].readyAt.Before(e[j].readyAt)
}

func (e entries[T]) Swap(i, j int) { e[i], e[j] = e[j], e[i] }

func (e *entries[T]) Push(x any) {
	*e = append(*e, x.(entry[T]))
}

func (e *entries[T]) Pop() any {
	old := *e
	n := len(old)
	last := old[n-1]
	var zero entry[T]
	old[n-1] = zero // drop the reference to the payload
	*e = old[:n-1]
	return last
}

// DeadlineHeap is a min-heap of values keyed by ready time.
//
// DeadlineHeap does no locking of its own. It is meant to sit behind a single
// lock owned by the caller, which must hold that lock for every method call.
type DeadlineHeap[T any] struct {
	items entries[T]
	seq   uint64
	opts  Options
}

func NewDeadlineHeap[T any](options ...Option) *DeadlineHeap[T] {
	h := &DeadlineHeap[T]{opts: defaultOptions()}
	for _, opt := range options {
		opt(&h.opts)
	}
	if h.opts.InitialCapacity > 0 {
		h.items = make(entries[T], 0, h.opts.InitialCapacity)
	}
	return h
}

func (h *DeadlineHeap[T]) Len() int {
	return len(h.items)
}

// Push inserts value with the given ready time. The returned sequence number
// is the tie-break key among equal ready times.
func (h *DeadlineHeap[T]) Push(value T, readyAt time.Time) uint64 {
	seq := h.seq
	h.seq++
	heap.Push(&h.items, entry[T]{value: value, readyAt: readyAt, seq: seq})
	return seq
}

// Peek returns the head without removing it.
func (h *DeadlineHeap[T]) Peek() (value T, readyAt time.Time, ok bool) {
	if len(h.items) == 0 {
		return value, readyAt, false
	}
	head := h.items[0]
	return head.value, head.readyAt, true
}

func (h *DeadlineHeap[T]) Pop() (value T, readyAt time.Time, ok bool) {
	if len(h.items) == 0 {
		return value, readyAt, false
	}
	head := heap.Pop(&h.items).(entry[T])
	return head.value, head.readyAt, true
}

// PopReady removes the head only if its ready time is not after now.
func (h *DeadlineHeap[T]) PopReady(now time.Time) (value T, readyAt time.Time, ok bool) {
	if len(h.items) == 0 || h.items[0].readyAt.After(now) {
		return value, readyAt, false
	}
	return h.Pop()
}

// Clear drops every entry and returns how many were removed. The sequence
// counter keeps counting so FIFO order holds across clears.
func (h *DeadlineHeap[T]) Clear() int {
	n := len(h.items)
	clear(h.items)
	h.items = h.items[:0]
	if h.opts.ShrinkOnClear && cap(h.items) > h.opts.InitialCapacity {
		h.items = make(entries[T], 0, h.opts.InitialCapacity)
	}
	return n
}
