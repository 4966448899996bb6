package priorityq

import (
	"errors"
	"sync/atomic"
)

var (
	ErrUnknownPriority = errors.New("unknown priority")
	ErrQueueClosed     = errors.New("the queue is closed")
	ErrQueueFull       = errors.New("the queue is full")
)

type Priority int

const (
	prioritiesCount = 3 // the number of priorities
	High            = Priority(0)
	Mid             = Priority(1)
	Low             = Priority(2)
)

// Queue is a bounded queue with three priority levels. Items of the same
// priority are read in the order they were written.
type Queue[T any] struct {
	closed atomic.Bool
	waitCh chan struct{}
	queues []chan T
}

// New returns a new priority queue where each priority has a buffer of prioQueueLimit.
func New[T any](prioQueueLimit int) *Queue[T] {
	qs := make([]chan T, prioritiesCount)
	for i := range qs {
		qs[i] = make(chan T, prioQueueLimit)
	}
	return &Queue[T]{
		waitCh: make(chan struct{}, prioQueueLimit*prioritiesCount),
		queues: qs,
	}
}

// Write a message m to the queue with the provided priority.
// This method blocks iff the queue is full.
// Note: writing concurrently with Close is forbidden.
func (pq *Queue[T]) Write(prio Priority, m T) error {
	if prio < 0 || int(prio) >= len(pq.queues) {
		return ErrUnknownPriority
	}
	if pq.closed.Load() {
		return ErrQueueClosed
	}
	pq.queues[prio] <- m
	pq.waitCh <- struct{}{}
	return nil
}

// Push is a non-blocking Write. It returns ErrQueueFull if the priority buffer is full.
func (pq *Queue[T]) Push(prio Priority, m T) error {
	if prio < 0 || int(prio) >= len(pq.queues) {
		return ErrUnknownPriority
	}
	if pq.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case pq.queues[prio] <- m:
	default:
		return ErrQueueFull
	}
	pq.waitCh <- struct{}{}
	return nil
}

// Read returns the next message by priority, blocking until one is available.
// An error is set iff the priority queue has been closed.
func (pq *Queue[T]) Read() (T, error) {
	if _, ok := <-pq.waitCh; !ok {
		var empty T
		return empty, ErrQueueClosed
	}
	return pq.pick()
}

// Pop returns the next message by priority without blocking.
func (pq *Queue[T]) Pop() (T, bool) {
	var empty T
	select {
	case _, ok := <-pq.waitCh:
		if !ok {
			return empty, false
		}
	default:
		return empty, false
	}
	m, err := pq.pick()
	return m, err == nil
}

func (pq *Queue[T]) pick() (T, error) {
	for _, q := range pq.queues {
		select {
		case m, ok := <-q:
			if ok {
				return m, nil
			}
		default:
		}
	}
	// reachable only after close
	var empty T
	return empty, ErrQueueClosed
}

// Len returns the number of queued messages.
func (pq *Queue[T]) Len() int {
	n := 0
	for _, q := range pq.queues {
		n += len(q)
	}
	return n
}

// Close the priority queue.
// No messages should be expected to be read after a call to Close.
func (pq *Queue[T]) Close() {
	if !pq.closed.CompareAndSwap(false, true) {
		return
	}
	for _, q := range pq.queues {
		close(q)
	}
	close(pq.waitCh)
}
