package agrpc

// ThreadContext is the state of one in-progress run of a [Context]. It is
// handed to every [Operation.Complete], and is only valid on that goroutine,
// for the duration of the call.
type ThreadContext struct {
	c               *Context
	pool            *operationPool
	checkRemoteWork bool
}

// Context returns the context being run.
func (x *ThreadContext) Context() *Context { return x.c }

// Submit queues op locally, with no synchronization. Equivalent to
// [Context.Submit] called from the running goroutine.
func (x *ThreadContext) Submit(op Operation) {
	b := op.operationBase()
	b.claim(op)
	x.c.local.push(b)
}

// Post queues fn locally, bracketed by WorkStarted / WorkFinished, using an
// operation from this goroutine's pool.
func (x *ThreadContext) Post(fn func()) {
	x.c.WorkStarted()
	op := x.pool.get()
	op.c = x.c
	op.fn = fn
	x.Submit(op)
}
