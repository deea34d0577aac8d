package dispatch

import "sync"

// callQueue is a thread-safe unbounded FIFO of pending requests.
//
// Submit may run on any goroutine; only the Run loop dequeues. Waiting is
// done through a size-1 signal channel so the loop can also select on its
// context.
type callQueue struct {
	mu       sync.Mutex
	requests []*request
	closed   bool
	signal   chan struct{}
}

// newCallQueue returns an unbounded queue with room preallocated for
// capacity requests.
func newCallQueue(capacity int) *callQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &callQueue{
		requests: make([]*request, 0, capacity),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds r to the back of the queue.
// Returns false if the queue is closed.
func (q *callQueue) Enqueue(r *request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front request without blocking.
func (q *callQueue) TryDequeue() (*request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil, false
	}

	r := q.requests[0]
	q.requests[0] = nil
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Wait returns a channel that fires when requests may be available. It is
// closed once the queue is closed.
func (q *callQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *callQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Done reports whether the queue is closed and empty.
func (q *callQueue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.requests) == 0
}

// Close stops further enqueues and wakes the waiter.
func (q *callQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
