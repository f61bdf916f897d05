// Package blockqueue implements the bounded FIFO work queue (C4) that
// connects the downloader's listing stage to its worker pool: a producer
// pushes block descriptors and closes the queue when done; workers drain
// whatever remains before observing end-of-queue.
package blockqueue

import "sync"

// Descriptor is one present block, as produced by listing and consumed
// exactly once by a worker.
type Descriptor struct {
	Index int64  // 0-based block ordinal
	Token string // opaque token required to fetch this block
}

// Queue is a thread-safe bounded FIFO of Descriptor values. The zero value
// is not usable; construct with New. A Go channel is the queue's backing
// store: it already gives blocking Put-when-full / Get-when-empty semantics
// and wakes every blocked Get exactly once when Close is called.
type Queue struct {
	ch       chan Descriptor
	aborted  chan struct{}
	abortSig sync.Once
}

// New returns a Queue with the given capacity. A reasonable default
// capacity is 2×N_workers.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Descriptor, capacity), aborted: make(chan struct{})}
}

// Put enqueues d, blocking if the queue is full, until either d is
// delivered or Abort is called. ok is false if Abort fired first, in which
// case the producer should stop feeding rather than keep calling Put. Put
// must not be called after Close.
func (q *Queue) Put(d Descriptor) (ok bool) {
	select {
	case q.ch <- d:
		return true
	case <-q.aborted:
		return false
	}
}

// Abort unblocks every current and future Put call without closing the
// underlying channel, so a consumer can signal "stop feeding me" without
// racing a concurrent producer's Close (closing a channel a sender is
// blocked on would panic that sender). Safe to call more than once or
// concurrently with Put.
func (q *Queue) Abort() {
	q.abortSig.Do(func() { close(q.aborted) })
}

// Get returns the next descriptor, blocking if the queue is empty. ok is
// false once the queue has been closed and fully drained; the returned
// Descriptor is then the zero value.
func (q *Queue) Get() (d Descriptor, ok bool) {
	d, ok = <-q.ch
	return d, ok
}

// Close signals that no more items will be Put. Remaining queued items are
// still delivered by Get; once drained, Get returns ok=false for every
// blocked and future caller — the "drained" sentinel from spec.md §4.4.
func (q *Queue) Close() {
	close(q.ch)
}

// Chan exposes the underlying channel so a caller can select between Get
// and an external stop signal (fetchpool uses this to wake idle workers
// immediately on a sibling's fatal error, without racing Queue.Close
// against an in-flight Put from the producer).
func (q *Queue) Chan() <-chan Descriptor {
	return q.ch
}
