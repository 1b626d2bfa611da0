package agrpc

import (
	"sync/atomic"
)

// WorkGuard holds one unit of outstanding work on a context, keeping Run
// from returning while no other work is in flight.
type WorkGuard struct {
	c    *Context
	owns atomic.Bool
}

// NewWorkGuard starts work on c, held until Reset.
func NewWorkGuard(c *Context) *WorkGuard {
	g := &WorkGuard{c: c}
	c.WorkStarted()
	g.owns.Store(true)
	return g
}

// Reset releases the work, if still held. Safe from any goroutine.
func (g *WorkGuard) Reset() {
	if g.owns.Swap(false) {
		g.c.WorkFinished()
	}
}

// OwnsWork reports whether Reset has not yet been called.
func (g *WorkGuard) OwnsWork() bool {
	return g.owns.Load()
}
