package delayqueue

import "github.com/pkg/errors"

// ErrPoisoned is returned by every mutating or consuming call once a panic
// has escaped one of the queue's critical sections. The heap may be in an
// inconsistent state and the queue refuses to hand out its contents.
var ErrPoisoned = errors.New("delayqueue: queue poisoned by a panic in a critical section")
