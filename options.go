package agrpc

import (
	"time"

	"github.com/joeycumines/logiface"
)

// contextOptions holds configuration options for Context creation.
type contextOptions struct {
	backend         CompletionBackend
	logger          *logiface.Logger[logiface.Event]
	panicLogRates   map[time.Duration]int
	concurrencyHint int
	metricsEnabled  bool
}

// --- Context Options ---

// ContextOption configures a Context instance.
type ContextOption interface {
	applyContext(*contextOptions) error
}

// contextOptionImpl implements ContextOption.
type contextOptionImpl struct {
	applyContextFunc func(*contextOptions) error
}

func (x *contextOptionImpl) applyContext(opts *contextOptions) error {
	return x.applyContextFunc(opts)
}

// WithCompletionBackend replaces the default [cq.CompletionQueue]. The
// context takes ownership, and shuts the backend down on Close.
func WithCompletionBackend(backend CompletionBackend) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		if backend == nil {
			return ErrNilBackend
		}
		opts.backend = backend
		return nil
	}}
}

// WithConcurrencyHint sets the number of per-goroutine operation pools,
// which should match the number of goroutines expected to take turns running
// the context. Defaults to 1.
func WithConcurrencyHint(n int) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		if n < 1 {
			return ErrInvalidConcurrencyHint
		}
		opts.concurrencyHint = n
		return nil
	}}
}

// WithLogger configures structured logging. A nil logger disables logging,
// which is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPanicLogRates sets the per-category rate limits applied to logging of
// panicking completions, keyed by the panic value's type. Only relevant with
// [WithLogger].
func WithPanicLogRates(rates map[time.Duration]int) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		opts.panicLogRates = rates
		return nil
	}}
}

// WithMetrics enables runtime metrics collection, see [Context.Metrics].
func WithMetrics(enabled bool) ContextOption {
	return &contextOptionImpl{func(opts *contextOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveContextOptions applies ContextOption instances to contextOptions.
func resolveContextOptions(opts []ContextOption) (*contextOptions, error) {
	cfg := &contextOptions{
		concurrencyHint: 1,
		panicLogRates: map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyContext(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
