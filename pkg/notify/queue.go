// Package notify implements the bounded per-client notification queue of
// spec §3 ("Server-side subscriber record") and §4.9 ("Subscriber Registry
// & fan-out"): a FIFO with one producer-side mutex, a condition variable for
// the blocking consumer, and a shutdown flag.
//
// Per spec §9 ("Subscriber queue shutdown flag"): the flag must be false at
// construction, so the first Pop blocks until either a notification is
// pushed or Shutdown is called. A queue born already shut down would let its
// one consumer return immediately with nothing delivered.
package notify

import (
	"sync"

	"github.com/EricZhang12138/Distributed-Filesystem/pkg/wire"
)

// Queue is a bounded FIFO of pending notifications for one client. It has
// exactly one producer-safe Push (called by however many server threads
// fan out a mutation) and is meant to be drained by exactly one consumer
// goroutine, the subscription RPC handler for that client.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  []wire.Notification
	capacity int
	shutdown bool
}

// NewQueue constructs a Queue with the given bound on buffered
// notifications. A non-positive capacity means unbounded.
func NewQueue(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends n to the queue and wakes the consumer. If the queue is
// already shut down, Push is a silent no-op: a notification produced for a
// client that has already disconnected is harmlessly dropped (spec §5,
// "Shared-resource policy").
//
// When the queue is at capacity, the oldest pending notification is
// dropped to make room; a client that falls behind sees the newest state
// rather than blocking every server thread that mutates a file it cares
// about.
func (q *Queue) Push(n wire.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shutdown {
		return
	}

	if q.capacity > 0 && len(q.pending) >= q.capacity {
		q.pending = q.pending[1:]
	}
	q.pending = append(q.pending, n)
	q.cond.Signal()
}

// Pop blocks until a notification is available or the queue is shut down.
// It returns ok=false only once every buffered notification has been
// drained after shutdown, matching the "pop blocks ... after shutdown, pop
// drains remaining entries then returns done" contract of spec §4.9.
func (q *Queue) Pop() (n wire.Notification, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.shutdown {
		q.cond.Wait()
	}

	if len(q.pending) == 0 {
		return wire.Notification{}, false
	}

	n = q.pending[0]
	q.pending = q.pending[1:]
	return n, true
}

// Shutdown marks the queue as closed and wakes the blocked consumer, if
// any. Safe to call more than once.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shutdown {
		return
	}
	q.shutdown = true
	q.cond.Broadcast()
}

// IsShutdown reports whether Shutdown has been called.
func (q *Queue) IsShutdown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shutdown
}
