package agrpc

import (
	"sync/atomic"
)

// intrusiveQueue is a single-goroutine FIFO of operations.
type intrusiveQueue struct {
	head *OperationBase
	tail *OperationBase
}

func (q *intrusiveQueue) empty() bool { return q.head == nil }

func (q *intrusiveQueue) push(b *OperationBase) {
	b.next = nil
	if q.tail == nil {
		q.head = b
	} else {
		q.tail.next = b
	}
	q.tail = b
}

func (q *intrusiveQueue) pop() *OperationBase {
	b := q.head
	if b == nil {
		return nil
	}
	q.head = b.next
	if q.head == nil {
		q.tail = nil
	}
	b.next = nil
	return b
}

// take moves the entire contents out of q.
func (q *intrusiveQueue) take() intrusiveQueue {
	v := *q
	*q = intrusiveQueue{}
	return v
}

// append moves the contents of other onto the back of q.
func (q *intrusiveQueue) append(other *intrusiveQueue) {
	if other.head == nil {
		return
	}
	if q.tail == nil {
		q.head = other.head
	} else {
		q.tail.next = other.head
	}
	q.tail = other.tail
	*other = intrusiveQueue{}
}

// inactiveRemote marks an atomicQueue that has been found empty by its
// consumer, and whose next producer therefore owes a wake-up.
var inactiveRemote OperationBase

// atomicQueue is a multi-producer, single-consumer LIFO stack of operations,
// reversed into FIFO order on dequeue. The head doubles as the active flag: a
// head of &inactiveRemote means inactive, anything else is active.
type atomicQueue struct {
	head atomic.Pointer[OperationBase]
}

func (q *atomicQueue) init() {
	q.head.Store(&inactiveRemote)
}

// enqueue pushes b, reporting true if the queue was previously inactive, in
// which case the caller must wake the consumer.
func (q *atomicQueue) enqueue(b *OperationBase) bool {
	for {
		old := q.head.Load()
		if old == &inactiveRemote {
			b.next = nil
		} else {
			b.next = old
		}
		if q.head.CompareAndSwap(old, b) {
			return old == &inactiveRemote
		}
	}
}

// tryMarkActive transitions an inactive queue to active and empty.
func (q *atomicQueue) tryMarkActive() bool {
	return q.head.CompareAndSwap(&inactiveRemote, nil)
}

// tryMarkInactiveOrDequeueAll marks an empty queue inactive, or else takes
// every queued operation, in submission order. Consumer only.
func (q *atomicQueue) tryMarkInactiveOrDequeueAll() (batch intrusiveQueue) {
	for {
		old := q.head.Load()
		switch old {
		case &inactiveRemote:
			return
		case nil:
			if q.head.CompareAndSwap(nil, &inactiveRemote) {
				return
			}
			continue
		}
		if !q.head.CompareAndSwap(old, nil) {
			continue
		}
		batch.tail = old
		var prev *OperationBase
		for b := old; b != nil; {
			next := b.next
			b.next = prev
			prev = b
			b = next
		}
		batch.head = prev
		return
	}
}
