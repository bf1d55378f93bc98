// Package queue provides the FIFO the dispatcher uses to serialise requests.
// Items may be added from any goroutine; a single consumer is woken through
// GotWork.
package queue

import (
	"sync"
)

type Queue[T any] struct {
	work    []T
	lock    sync.Mutex
	gotwork chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	res := &Queue[T]{
		gotwork: make(chan struct{}, 1),
	}
	return res
}

// GotWork returns a channel that receives after Add. Several Adds may be
// coalesced into a single signal, so the consumer must drain the queue.
func (q *Queue[T]) GotWork() <-chan struct{} {
	return q.gotwork
}

// Peek returns the head of the queue without removing it.
func (q *Queue[T]) Peek() (item T, ok bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if ok = len(q.work) > 0; ok {
		item = q.work[0]
	}
	return
}

// Get removes and returns the head of the queue.
func (q *Queue[T]) Get() (item T, ok bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if ok = len(q.work) > 0; ok {
		var zero T
		item = q.work[0]
		q.work[0] = zero
		q.work = q.work[1:]
	}
	return
}

func (q *Queue[T]) Add(item T) {
	q.lock.Lock()
	q.work = append(q.work, item)
	q.lock.Unlock()
	q.signalWork()
}

// Remove deletes every item for which drop returns true, except the head
// when keepHead is set, and returns the removed items in queue order.
func (q *Queue[T]) Remove(keepHead bool, drop func(T) bool) []T {
	q.lock.Lock()
	defer q.lock.Unlock()
	var removed []T
	kept := q.work[:0]
	for i, item := range q.work {
		if (i > 0 || !keepHead) && drop(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	var zero T
	for i := len(kept); i < len(q.work); i++ {
		q.work[i] = zero
	}
	q.work = kept
	return removed
}

func (q *Queue[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.work)
}

func (q *Queue[T]) signalWork() {
	select {
	case q.gotwork <- struct{}{}:
	default:
	}
}
