package agrpc

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/cpu"

	"github.com/khangthk/asio-grpc/cq"
)

// Context is the scheduler. It runs completions for its [CompletionBackend]
// together with work submitted via [Context.Submit] and [Context.Post].
//
// A Context must be created with [New], and released with [Context.Close].
type Context struct {
	_ [0]func() // not comparable

	backend   CompletionBackend
	logger    *logiface.Logger[logiface.Event]
	panicRate *catrate.Limiter
	metrics   *metricsCounters

	// tc is the state of the current run, only touched by its goroutine
	tc    *ThreadContext
	pools poolSet
	local intrusiveQueue

	notify notifyList

	_      cpu.CacheLinePad
	remote atomicQueue

	_               cpu.CacheLinePad
	outstandingWork atomic.Int64

	_           cpu.CacheLinePad
	goroutineID atomic.Uint64
	stopped     atomic.Bool
	shutdown    atomic.Bool
	running     atomic.Bool
}

// stepResult describes what a single do-one step found.
type stepResult struct {
	local bool // local queue work ran
	event bool // a backend event was dispatched
	wake  bool // a wake event was swallowed
}

func (r stepResult) progressed() bool { return r.local || r.event || r.wake }

// pollDeadline is a deadline that has always passed, for non-blocking pulls.
var pollDeadline = time.Unix(0, 0)

// New creates a Context, initially stopped, with no outstanding work.
func New(opts ...ContextOption) (*Context, error) {
	cfg, err := resolveContextOptions(opts)
	if err != nil {
		return nil, err
	}

	c := &Context{
		backend: cfg.backend,
		logger:  cfg.logger,
		pools:   newPoolSet(cfg.concurrencyHint),
	}
	if c.backend == nil {
		c.backend = cq.New()
	}
	if c.logger != nil && len(cfg.panicLogRates) != 0 {
		c.panicRate = catrate.NewLimiter(cfg.panicLogRates)
	}
	if cfg.metricsEnabled {
		c.metrics = new(metricsCounters)
	}
	c.remote.init()
	c.stopped.Store(true)

	return c, nil
}

// Backend returns the completion backend.
func (c *Context) Backend() CompletionBackend { return c.backend }

// Logger returns the logger configured by [WithLogger], which may be nil.
// A nil logger is safe to use, and discards everything.
func (c *Context) Logger() *logiface.Logger[logiface.Event] { return c.logger }

// Run processes work until there is no outstanding work, or the context is
// stopped, blocking on the backend as necessary. It reports whether any
// queued operation or backend event was processed.
func (c *Context) Run() bool {
	return c.processWork(func(tc *ThreadContext) bool {
		return c.loop(tc, time.Time{}, false)
	})
}

// RunCompletionQueue is Run, restricted to backend events. Queued work is
// left in place.
func (c *Context) RunCompletionQueue() bool {
	return c.processWork(func(tc *ThreadContext) bool {
		return c.loop(tc, time.Time{}, true)
	})
}

// Poll processes ready work without blocking.
func (c *Context) Poll() bool {
	return c.processWork(func(tc *ThreadContext) bool {
		return c.loop(tc, pollDeadline, false)
	})
}

// PollCompletionQueue processes ready backend events without blocking.
func (c *Context) PollCompletionQueue() bool {
	return c.processWork(func(tc *ThreadContext) bool {
		return c.loop(tc, pollDeadline, true)
	})
}

// RunUntil is Run, blocking on the backend no later than deadline. Ready
// work is still processed once the deadline has passed, the run only ends
// when a step finds nothing.
func (c *Context) RunUntil(deadline time.Time) bool {
	if deadline.IsZero() {
		deadline = pollDeadline
	}
	return c.processWork(func(tc *ThreadContext) bool {
		return c.loop(tc, deadline, false)
	})
}

// RunWhile is Run, for as long as cond returns true. The condition is
// checked before every step, on the running goroutine.
func (c *Context) RunWhile(cond func() bool) bool {
	return c.processWork(func(tc *ThreadContext) bool {
		var processed bool
		for cond() {
			r := c.doOne(tc, time.Time{}, false)
			if r.local || r.event {
				processed = true
			}
			if !r.progressed() {
				break
			}
		}
		return processed
	})
}

// loop repeats doOne until it finds nothing.
func (c *Context) loop(tc *ThreadContext, deadline time.Time, completionQueueOnly bool) (processed bool) {
	for {
		r := c.doOne(tc, deadline, completionQueueOnly)
		if r.event || (r.local && !completionQueueOnly) {
			processed = true
		}
		if !r.progressed() {
			return
		}
	}
}

func (c *Context) processWork(fn func(tc *ThreadContext) bool) bool {
	if !c.running.CompareAndSwap(false, true) {
		panic(ErrReentrantRun)
	}
	defer c.running.Store(false)

	if c.shutdown.Load() || c.outstandingWork.Load() == 0 {
		c.stopped.Store(true)
		return false
	}

	c.Reset()

	tc := &ThreadContext{
		c:               c,
		pool:            c.pools.acquire(),
		checkRemoteWork: true,
	}
	c.tc = tc
	c.goroutineID.Store(getGoroutineID())

	defer func() {
		c.goroutineID.Store(0)
		c.tc = nil
		c.pools.release(tc.pool)
		c.stopped.Store(true)
	}()

	c.logger.Trace().Log("agrpc: run started")

	processed := fn(tc)

	c.logger.Trace().Bool("processed", processed).Log("agrpc: run finished")

	return processed
}

// doOne performs a single step: the remote queue is transferred (if flagged),
// the local queue snapshot is processed, then one backend event is pulled.
func (c *Context) doOne(tc *ThreadContext, deadline time.Time, completionQueueOnly bool) (r stepResult) {
	if c.stopped.Load() {
		return
	}

	if !completionQueueOnly {
		if tc.checkRemoteWork {
			tc.checkRemoteWork = c.moveRemoteWorkToLocal()
		}
		morePending := tc.checkRemoteWork || !c.local.empty()
		r.local = c.processLocalQueue(tc)
		if morePending {
			deadline = pollDeadline
		}
	}

	// a Stop racing the remote transfer may have found the queue active, and
	// sent no wake
	if c.stopped.Load() {
		deadline = pollDeadline
	}

	r.event, r.wake = c.handleNextEvent(tc, deadline)

	return
}

// moveRemoteWorkToLocal transfers the remote queue, reporting false once the
// remote queue has been marked inactive.
func (c *Context) moveRemoteWorkToLocal() bool {
	batch := c.remote.tryMarkInactiveOrDequeueAll()
	if batch.empty() {
		return false
	}
	if c.metrics != nil {
		var n uint64
		for b := batch.head; b != nil; b = b.next {
			n++
		}
		c.metrics.addRemote(n)
	}
	c.local.append(&batch)
	return true
}

// processLocalQueue runs the operations queued as of the call. Operations
// they queue run on the next step.
func (c *Context) processLocalQueue(tc *ThreadContext) bool {
	if c.local.empty() {
		return false
	}
	batch := c.local.take()
	defer func() {
		// a completion panicked, keep the rest ahead of newer work
		if !batch.empty() {
			batch.append(&c.local)
			c.local = batch
		}
	}()
	for b := batch.pop(); b != nil; b = batch.pop() {
		op := b.release()
		c.metrics.addLocal()
		c.invoke(op, true, tc)
	}
	return true
}

func (c *Context) handleNextEvent(tc *ThreadContext, deadline time.Time) (event, wake bool) {
	ev, status := c.backend.Next(deadline)
	if status != cq.GotEvent {
		return
	}
	c.metrics.addEvent(ev.Wake)
	if ev.Wake {
		tc.checkRemoteWork = true
		return false, true
	}
	c.invoke(tagOperation(ev.Tag), ev.OK, tc)
	return true, false
}

func (c *Context) invoke(op Operation, ok bool, tc *ThreadContext) {
	if c.logger == nil {
		op.Complete(ok, tc)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logPanic(op, r)
			panic(r)
		}
	}()
	op.Complete(ok, tc)
}

func (c *Context) logPanic(op Operation, r any) {
	category := fmt.Sprintf("%T", r)
	if c.panicRate != nil {
		if _, ok := c.panicRate.Allow(category); !ok {
			return
		}
	}
	b := c.logger.Err()
	if err, ok := r.(error); ok {
		b = b.Err(err)
	} else {
		b = b.Any("panic", r)
	}
	b.Str("operation", fmt.Sprintf("%T", op)).
		Log("agrpc: completion panicked")
}

// Stop requests that the current (or next) run return as soon as possible.
// Safe from any goroutine, and idempotent.
func (c *Context) Stop() {
	if !c.stopped.Swap(true) && !c.RunningInThisGoroutine() && c.remote.tryMarkActive() {
		c.backend.TriggerWake()
	}
}

// Reset clears the stopped state. The run methods reset on entry, so this
// is only needed to clear a Stop before inspecting [Context.IsStopped].
func (c *Context) Reset() {
	c.stopped.Store(false)
}

// IsStopped reports whether the context is stopped. It is true whenever no
// run is in progress.
func (c *Context) IsStopped() bool {
	return c.stopped.Load()
}

// WorkStarted records one unit of outstanding work.
func (c *Context) WorkStarted() {
	c.outstandingWork.Add(1)
}

// WorkFinished releases one unit of outstanding work, stopping the context
// when none remains.
func (c *Context) WorkFinished() {
	if c.outstandingWork.Add(-1) == 0 {
		c.Stop()
	}
}

// RunningInThisGoroutine reports whether the caller is the goroutine
// currently running the context.
func (c *Context) RunningInThisGoroutine() bool {
	id := c.goroutineID.Load()
	if id == 0 {
		return false
	}
	return getGoroutineID() == id
}

// Submit queues op. From the running goroutine it is queued locally,
// otherwise it is queued remotely, waking the backend if necessary. Submit
// does not count work, callers must bracket op with WorkStarted and
// WorkFinished themselves. Submissions after Close are discarded.
func (c *Context) Submit(op Operation) {
	if c.RunningInThisGoroutine() {
		c.tc.Submit(op)
		return
	}
	b := op.operationBase()
	b.claim(op)
	if c.shutdown.Load() {
		c.discard(b.release())
		return
	}
	if c.remote.enqueue(b) {
		c.backend.TriggerWake()
	}
	// Close may have drained the remote queue between the check and the
	// enqueue
	if c.shutdown.Load() {
		c.discardRemote()
	}
}

// Post queues fn to run on the context, counting it as outstanding work.
func (c *Context) Post(fn func()) {
	if c.RunningInThisGoroutine() {
		c.tc.Post(fn)
		return
	}
	c.WorkStarted()
	c.Submit(&funcOperation{c: c, fn: fn})
}

// Dispatch runs fn immediately if called from the running goroutine,
// otherwise it is equivalent to Post.
func (c *Context) Dispatch(fn func()) {
	if c.RunningInThisGoroutine() {
		fn()
		return
	}
	c.WorkStarted()
	c.Submit(&funcOperation{c: c, fn: fn})
}

// Metrics returns a snapshot of the counters. It is the zero value unless
// [WithMetrics] was enabled.
func (c *Context) Metrics() Metrics {
	return c.metrics.snapshot()
}

// Close tears the context down: it stops, shuts down the backend, and drains
// it. Every pending completion and queued operation is discarded without
// being invoked. Close must not be called while a run is in progress.
func (c *Context) Close() error {
	if c.running.Load() {
		return ErrContextRunning
	}
	if !c.shutdown.CompareAndSwap(false, true) {
		return ErrContextClosed
	}

	c.Stop()
	c.notify.cancelAll(c.backend)
	c.backend.Shutdown()

	var discarded uint64
	for {
		ev, status := c.backend.Next(time.Time{})
		if status == cq.Shutdown {
			break
		}
		if status != cq.GotEvent || ev.Wake {
			continue
		}
		c.discard(tagOperation(ev.Tag))
		discarded++
	}

	local := c.local.take()
	local.append(func() *intrusiveQueue {
		v := c.remote.tryMarkInactiveOrDequeueAll()
		return &v
	}())
	for b := local.pop(); b != nil; b = local.pop() {
		c.discard(b.release())
		discarded++
	}

	c.pools.drain()
	c.metrics.addDiscarded(discarded)

	if discarded != 0 {
		c.logger.Warning().
			Uint64("discarded", discarded).
			Log("agrpc: discarded pending operations on close")
	} else {
		c.logger.Debug().Log("agrpc: closed")
	}

	return nil
}

// discardRemote discards whatever is left on the remote queue after Close.
// Once shut down, any goroutine may drain it, each batch is taken whole.
func (c *Context) discardRemote() {
	batch := c.remote.tryMarkInactiveOrDequeueAll()
	var n uint64
	for b := batch.pop(); b != nil; b = batch.pop() {
		c.discard(b.release())
		n++
	}
	c.metrics.addDiscarded(n)
}

func (c *Context) discard(op Operation) {
	if d, ok := op.(Discarder); ok {
		d.Discard()
	}
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
