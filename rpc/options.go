package rpc

import (
	agrpc "github.com/khangthk/asio-grpc"
	"google.golang.org/grpc"
)

// StartOption configures a call.
type StartOption interface {
	applyStart(opts *startOptions)
}

type startOptions struct {
	slot         agrpc.CancellationSlot
	newResponder responderFactory
}

type responderFactory func(backend agrpc.CompletionBackend, cc grpc.ClientConnInterface, desc grpc.StreamDesc, method string, cctx *ClientContext, resp any) responder

type startOptionImpl struct {
	applyStartFunc func(opts *startOptions)
}

func (x *startOptionImpl) applyStart(opts *startOptions) {
	x.applyStartFunc(opts)
}

// WithCancellationSlot binds [ClientContext.TryCancel] to slot, from the
// start of the call until its terminal phase.
func WithCancellationSlot(slot agrpc.CancellationSlot) StartOption {
	return &startOptionImpl{func(opts *startOptions) {
		opts.slot = slot
	}}
}

func resolveStartOptions(opts []StartOption) *startOptions {
	cfg := &startOptions{
		newResponder: newClientCall,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyStart(cfg)
		}
	}
	return cfg
}

// WriteOptions modify a single write.
type WriteOptions struct {
	// LastMessage half-closes the stream with the write. For client
	// streaming calls it also finishes the call.
	LastMessage bool
}
