package delayqueue

import "time"

// Delayed is the contract for values stored in a Queue. ReadyTime reports
// the instant before which the value must not be removed.
//
// The queue calls ReadyTime once, when the value is inserted, and orders by
// that result for as long as the value stays queued.
type Delayed interface {
	ReadyTime() time.Time
}

// Item pairs an arbitrary payload with a ready time.
type Item[V any] struct {
	Value   V
	readyAt time.Time
}

var _ Delayed = Item[struct{}]{}

// NewItem wraps value so that it becomes ready at readyAt.
func NewItem[V any](value V, readyAt time.Time) Item[V] {
	return Item[V]{Value: value, readyAt: readyAt}
}

// NewItemAfter wraps value so that it becomes ready once delay has elapsed.
// The ready time carries a monotonic clock reading.
func NewItemAfter[V any](value V, delay time.Duration) Item[V] {
	return NewItem(value, time.Now().Add(delay))
}

func (i Item[V]) ReadyTime() time.Time {
	return i.readyAt
}

// Delay returns the time left until the item is ready. It is zero or
// negative once the item is ready.
func (i Item[V]) Delay() time.Duration {
	return time.Until(i.readyAt)
}
