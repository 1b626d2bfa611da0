package cq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eapache/queue"
)

var (
	// ErrShutdown is returned when reserving an event on a queue that has been
	// shut down.
	ErrShutdown = errors.New("cq: completion queue is shut down")

	// ErrAlarmArmed is returned by [Alarm.Set] while a previous Set is still
	// outstanding.
	ErrAlarmArmed = errors.New("cq: alarm already set")
)

// NextStatus is the outcome of [CompletionQueue.Next].
type NextStatus int

const (
	// GotEvent indicates an event was returned.
	GotEvent NextStatus = iota
	// Shutdown indicates the queue has been shut down and fully drained.
	Shutdown
	// Timeout indicates the deadline passed with no event available.
	Timeout
)

// String returns the name of the status.
func (s NextStatus) String() string {
	switch s {
	case GotEvent:
		return "GotEvent"
	case Shutdown:
		return "Shutdown"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Event is one delivered completion.
type Event struct {
	// Tag is the value passed to Complete or Submit.
	Tag any
	// OK reports whether the action completed as requested.
	OK bool
	// Wake marks events produced by TriggerWake. Tag and OK are unset.
	Wake bool
}

// Poster is the producer side of a completion queue.
type Poster interface {
	// Begin reserves one future event. Every successful Begin must be
	// followed by exactly one Complete.
	Begin() error
	// Complete delivers a reserved event.
	Complete(tag any, ok bool)
}

// CompletionQueue is a multi-producer completion queue. Any number of
// goroutines may produce, and Next may be called concurrently, though the
// intended use is a single consumer.
//
// The zero value is not usable, use [New].
type CompletionQueue struct {
	_        [0]func() // not comparable
	ctx      context.Context
	cancel   context.CancelFunc
	events   *queue.Queue
	notify   chan struct{}
	mu       sync.Mutex
	pending  int
	shutdown bool
}

var _ Poster = (*CompletionQueue)(nil)

// New returns an empty completion queue.
func New() *CompletionQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &CompletionQueue{
		ctx:    ctx,
		cancel: cancel,
		events: queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Begin reserves one future event, see [Poster].
func (x *CompletionQueue) Begin() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.shutdown {
		return ErrShutdown
	}
	x.pending++
	return nil
}

// Complete delivers an event reserved by Begin. It panics if there is no
// outstanding reservation.
func (x *CompletionQueue) Complete(tag any, ok bool) {
	x.mu.Lock()
	if x.pending <= 0 {
		x.mu.Unlock()
		panic("cq: complete without matching begin")
	}
	x.pending--
	x.events.Add(Event{Tag: tag, OK: ok})
	x.mu.Unlock()
	x.signal()
}

// Submit reserves an event then runs action on a new goroutine, delivering
// its result with the given tag.
func (x *CompletionQueue) Submit(tag any, action func() bool) error {
	if err := x.Begin(); err != nil {
		return err
	}
	go func() {
		var ok bool
		defer func() { x.Complete(tag, ok) }()
		ok = action()
	}()
	return nil
}

// TriggerWake enqueues a wake event.
func (x *CompletionQueue) TriggerWake() {
	x.mu.Lock()
	x.events.Add(Event{Wake: true})
	x.mu.Unlock()
	x.signal()
}

// Shutdown stops new reservations and cancels [CompletionQueue.Context].
// Idempotent.
func (x *CompletionQueue) Shutdown() {
	x.mu.Lock()
	x.shutdown = true
	x.mu.Unlock()
	x.cancel()
	x.signal()
}

// Context is cancelled once Shutdown has been called. Producers running
// blocking actions should derive from it, so that the drain that follows
// shutdown terminates.
func (x *CompletionQueue) Context() context.Context {
	return x.ctx
}

// Done is shorthand for Context().Done().
func (x *CompletionQueue) Done() <-chan struct{} {
	return x.ctx.Done()
}

// Next pulls one event, waiting until the deadline. The zero deadline waits
// indefinitely, and a deadline that has already passed polls.
func (x *CompletionQueue) Next(deadline time.Time) (Event, NextStatus) {
	var timeout <-chan time.Time
	for {
		x.mu.Lock()
		if x.events.Length() != 0 {
			ev := x.events.Remove().(Event)
			more := x.events.Length() != 0 || (x.shutdown && x.pending == 0)
			x.mu.Unlock()
			if more {
				// pass the token on, in case of other consumers
				x.signal()
			}
			return ev, GotEvent
		}
		if x.shutdown && x.pending == 0 {
			x.mu.Unlock()
			x.signal()
			return Event{}, Shutdown
		}
		x.mu.Unlock()

		if timeout == nil && !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return Event{}, Timeout
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case <-x.notify:
		case <-timeout:
			return Event{}, Timeout
		}
	}
}

func (x *CompletionQueue) signal() {
	select {
	case x.notify <- struct{}{}:
	default:
	}
}
