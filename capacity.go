package delayqueue

import "fmt"

// Capacity is the size policy of a queue: either Unbounded or Bounded(n).
// The zero value is unbounded.
type Capacity struct {
	limit int
}

// Unbounded returns a capacity without a limit.
func Unbounded() Capacity {
	return Capacity{}
}

// Bounded returns a capacity of n elements. It panics if n is not positive;
// use Unbounded for a queue without a limit.
func Bounded(n int) Capacity {
	if n <= 0 {
		panic(fmt.Sprintf("delayqueue: bounded capacity must be positive, got %d", n))
	}
	return Capacity{limit: n}
}

// Limit returns the bound and true, or 0 and false when unbounded.
func (c Capacity) Limit() (int, bool) {
	return c.limit, c.limit > 0
}

func (c Capacity) IsBounded() bool {
	return c.limit > 0
}

func (c Capacity) String() string {
	if c.limit > 0 {
		return fmt.Sprintf("bounded(%d)", c.limit)
	}
	return "unbounded"
}
