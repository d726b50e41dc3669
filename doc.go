// Package delayqueue implements a blocking, deadline-ordered queue.
//
// Every value carries a ready time. Take and Poll hand out the value with the
// earliest ready time, and only once that time has passed; values sharing a
// ready time leave in the order they were added. A queue may be bounded, in
// which case Add and Offer wait for a free slot.
//
// All timed operations fix their deadline when called and measure it with the
// monotonic clock. A timeout of zero or less means "check once".
//
// If a panic escapes one of the queue's critical sections the queue is
// poisoned: the panic is re-raised to the goroutine that caused it, every
// parked goroutine is woken, and all later mutating or consuming calls return
// ErrPoisoned.
package delayqueue
