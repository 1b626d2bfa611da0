package agrpc

import (
	"errors"
)

var (
	// ErrReentrantRun is the panic value when a run method is called while
	// the context is already being run, either nested within a completion
	// or from another goroutine.
	ErrReentrantRun = errors.New("agrpc: context is already running")

	// ErrContextClosed is returned once [Context.Close] has been called.
	ErrContextClosed = errors.New("agrpc: context has been closed")

	// ErrContextRunning is returned by [Context.Close] while a run method is
	// in progress.
	ErrContextRunning = errors.New("agrpc: cannot close a running context")

	// ErrOperationInUse is the panic value when an operation is submitted
	// while it is still queued.
	ErrOperationInUse = errors.New("agrpc: operation is already queued")

	// ErrInvalidConcurrencyHint is returned by [WithConcurrencyHint] for
	// values below one.
	ErrInvalidConcurrencyHint = errors.New("agrpc: concurrency hint must be at least 1")

	// ErrNilBackend is returned by [WithCompletionBackend] for a nil backend.
	ErrNilBackend = errors.New("agrpc: completion backend must not be nil")
)
