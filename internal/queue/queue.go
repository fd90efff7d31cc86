// Package queue implements the pending-request FIFO: an unbounded queue
// with edge-triggered wake-up, exposed to the dispatcher as a blocking Pop
// that suspends until the next Push. The notification channel has
// capacity 1 so a Push never blocks and a wake-up is never lost.
package queue

import (
	"container/list"
	"context"
	"sync"
)

// PendingRequest is the immutable, queued view of an admitted request.
// VKHash is a 32-byte opaque verification-key hash; StdinRef is the Key
// string of the resolved stdin artifact.
type PendingRequest struct {
	ID            string
	VKHash        [32]byte
	Mode          int
	StdinRef      string
	CycleLimit    uint64
	GasLimit      uint64
	Deadline      int64
	RequestTxHash []byte
}

// Queue is a strict FIFO: Push appends to the back, Pop removes from the
// front. Pop on an empty queue suspends until a Push wakes it, and a Push
// wakes at most one waiter.
type Queue struct {
	mu     sync.Mutex
	items  *list.List
	notify chan struct{}
}

// New returns an empty pending queue.
func New() *Queue {
	return &Queue{
		items:  list.New(),
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues req at the back and wakes exactly one waiter blocked in
// Pop, if any.
func (q *Queue) Push(req PendingRequest) {
	q.mu.Lock()
	q.items.PushBack(req)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
		// A wake-up is already pending; whichever Pop takes it passes the
		// wake-up on while items remain, so this item is found too.
	}
}

// Pop removes and returns the front item, blocking until one is available
// or ctx is cancelled.
func (q *Queue) Pop(ctx context.Context) (PendingRequest, error) {
	for {
		q.mu.Lock()
		front := q.items.Front()
		if front != nil {
			q.items.Remove(front)
			more := q.items.Len() > 0
			q.mu.Unlock()
			if more {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return front.Value.(PendingRequest), nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
			// Woken; loop back and check again. Another goroutine may
			// have already drained the item, in which case we simply
			// go back to sleep.
		case <-ctx.Done():
			return PendingRequest{}, ctx.Err()
		}
	}
}

// Len reports the current queue depth, used by the /health endpoint's
// queued_proof_request_count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Stream exposes the queue as a lazy, infinite channel of items for the
// dispatcher. The returned channel is closed when ctx is cancelled.
func (q *Queue) Stream(ctx context.Context) <-chan PendingRequest {
	out := make(chan PendingRequest)
	go func() {
		defer close(out)
		for {
			req, err := q.Pop(ctx)
			if err != nil {
				return
			}
			select {
			case out <- req:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
