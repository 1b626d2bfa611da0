package agrpc

import (
	"context"
	"sync"
)

// doneNotification is one NotifyWhenDone registration, and the tag of its
// backend event.
type doneNotification struct {
	OperationBase
	c    *Context
	fn   func()
	stop func() bool
	prev *doneNotification
	next *doneNotification
}

// notifyList is the intrusive list of registrations yet to fire.
type notifyList struct {
	head *doneNotification
	mu   sync.Mutex
}

// NotifyWhenDone calls fn on the context once ctx is done, typically the
// context of a server-side call, to observe peer cancellation. The
// registration counts as outstanding work until it fires. Registrations that
// never fire are dropped by Close without calling fn.
func (c *Context) NotifyWhenDone(ctx context.Context, fn func()) error {
	if c.shutdown.Load() {
		return ErrContextClosed
	}
	if err := c.backend.Begin(); err != nil {
		return ErrContextClosed
	}
	c.WorkStarted()

	n := &doneNotification{c: c, fn: fn}
	backend := c.backend

	c.notify.mu.Lock()
	c.notify.pushLocked(n)
	n.stop = context.AfterFunc(ctx, func() { backend.Complete(n, true) })
	c.notify.mu.Unlock()

	return nil
}

func (x *doneNotification) Complete(ok bool, _ *ThreadContext) {
	c := x.c
	c.notify.remove(x)
	defer c.WorkFinished()
	if ok {
		x.fn()
	}
}

func (x *notifyList) pushLocked(n *doneNotification) {
	n.next = x.head
	if x.head != nil {
		x.head.prev = n
	}
	x.head = n
}

func (x *notifyList) remove(n *doneNotification) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.removeLocked(n)
}

func (x *notifyList) removeLocked(n *doneNotification) {
	if n.prev != nil {
		n.prev.next = n.next
	} else if x.head == n {
		x.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	n.prev, n.next = nil, nil
}

// cancelAll unlinks every registration. Those whose ctx has not fired have
// their reserved event delivered as not ok, for the teardown drain to
// discard.
func (x *notifyList) cancelAll(backend CompletionBackend) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for x.head != nil {
		n := x.head
		x.removeLocked(n)
		if n.stop() {
			backend.Complete(n, false)
		}
	}
}
