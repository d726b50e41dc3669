// Package monitor provides a condition variable whose waits can time out or
// be cancelled.
//
// sync.Cond has no timed wait, which the delay queue needs on both of its
// conditions: a consumer sleeps until the head becomes ready, a producer
// until a slot frees or its offer times out. Cond parks each waiter on its
// own channel and wakes them in arrival order.
package monitor
