package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// ClientContext carries the per-call state a caller controls or observes:
// the request context, call options, and the metadata received from the
// server. A ClientContext must not be shared between calls.
type ClientContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    []grpc.CallOption
	header  metadata.MD
	trailer metadata.MD
}

// NewClientContext returns a ClientContext deriving from parent. Outgoing
// metadata and deadlines are attached to parent in the usual way.
func NewClientContext(parent context.Context, opts ...grpc.CallOption) *ClientContext {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &ClientContext{
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
	}
}

// Context returns the context the call runs under.
func (x *ClientContext) Context() context.Context { return x.ctx }

// TryCancel cancels the call. It is safe to call from any goroutine, any
// number of times, including after the call has completed.
func (x *ClientContext) TryCancel() { x.cancel() }

// Header returns the initial metadata received from the server. It is
// populated once ReadInitialMetadata, or a unary call, has completed.
func (x *ClientContext) Header() metadata.MD { return x.header }

// Trailer returns the trailing metadata received from the server. It is
// populated once the call has finished.
func (x *ClientContext) Trailer() metadata.MD { return x.trailer }

// unaryOptions returns the call options for a unary call, capturing
// metadata into x.
func (x *ClientContext) unaryOptions() []grpc.CallOption {
	opts := make([]grpc.CallOption, 0, len(x.opts)+2)
	opts = append(opts, x.opts...)
	return append(opts, grpc.Header(&x.header), grpc.Trailer(&x.trailer))
}
