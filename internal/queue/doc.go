// Package queue provides the deadline-ordered storage behind the public delay
// queue.
//
// DeadlineHeap keeps the entry with the earliest ready time at its head. When
// two entries share a ready time, the one pushed first stays ahead, so
// simultaneously ready entries leave in insertion order.
//
// The heap is not safe for concurrent use. The delay queue guards it with its
// single mutex and never touches it without holding that lock.
package queue
