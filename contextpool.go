package agrpc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ContextPool is a fixed set of contexts, each intended to be driven by its
// own goroutine. It provides no load balancing beyond round-robin selection.
type ContextPool struct {
	contexts []*Context
	next     atomic.Uint32
}

// NewContextPool creates size contexts, each with the given options, which
// must not include [WithCompletionBackend] (a backend has one owner).
func NewContextPool(size int, opts ...ContextOption) (*ContextPool, error) {
	if size < 1 {
		return nil, ErrInvalidConcurrencyHint
	}
	x := &ContextPool{contexts: make([]*Context, 0, size)}
	for range size {
		c, err := New(opts...)
		if err != nil {
			_ = x.Close()
			return nil, err
		}
		x.contexts = append(x.contexts, c)
	}
	return x, nil
}

// Len returns the number of contexts.
func (x *ContextPool) Len() int { return len(x.contexts) }

// At returns the i'th context.
func (x *ContextPool) At(i int) *Context { return x.contexts[i] }

// Next returns contexts in round-robin order. Safe from any goroutine.
func (x *ContextPool) Next() *Context {
	i := x.next.Add(1) - 1
	return x.contexts[int(i%uint32(len(x.contexts)))]
}

// Run drives every context on its own locked OS thread until ctx is done and
// each context's remaining work has finished. A completion panic ends that
// context's goroutine, stops the rest, and is returned as an error wrapping
// the panic value, if it was an error.
func (x *ContextPool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range x.contexts {
		guard := NewWorkGuard(c)
		g.Go(func() (err error) {
			stop := context.AfterFunc(gctx, guard.Reset)
			defer stop()
			defer guard.Reset()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			defer func() {
				if r := recover(); r != nil {
					if v, ok := r.(error); ok {
						err = fmt.Errorf("agrpc: pool context %d: %w", i, v)
					} else {
						err = fmt.Errorf("agrpc: pool context %d: panic: %v", i, r)
					}
				}
			}()
			for {
				c.Run()
				if !guard.OwnsWork() || c.shutdown.Load() {
					return nil
				}
			}
		})
	}
	return g.Wait()
}

// Close closes every context.
func (x *ContextPool) Close() error {
	var errs []error
	for _, c := range x.contexts {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
