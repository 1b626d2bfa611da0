package rpc

import (
	agrpc "github.com/khangthk/asio-grpc"
	"google.golang.org/grpc"
)

// ClientStreamingRPC is a call with a stream of requests and a single
// response.
type ClientStreamingRPC struct {
	call
	starter  starter
	metadata reader
	writer   writer
	finisher finisher
}

// StartClientStreaming starts a client-streaming call of method, delivering
// the stream to done. The response is received into resp when the call
// finishes.
//
// If starting fails, the call is finished before done is invoked with ok
// false, and the status is available from [ClientStreamingRPC.Err].
func StartClientStreaming(exec *agrpc.Context, cc grpc.ClientConnInterface, method string, cctx *ClientContext, resp any, done func(rpc *ClientStreamingRPC, ok bool), opts ...StartOption) error {
	if err := validateStart(exec, cc, cctx); err != nil {
		return err
	}
	x := new(ClientStreamingRPC)
	x.init(exec, cc, grpc.StreamDesc{StreamName: MethodName(method), ClientStreams: true}, method, cctx, resp, resolveStartOptions(opts))
	x.starter.init(&x.call, nil, func(ok bool) { done(x, ok) })
	x.metadata.init(&x.call, true, true)
	x.writer.init(&x.call, true)
	x.finisher.init(&x.call)
	exec.Dispatch(x.starter.initiate)
	return nil
}

// ReadInitialMetadata receives the server's initial metadata, available
// from [ClientContext.Header] once done reports true. On failure the call
// is finished first.
func (x *ClientStreamingRPC) ReadInitialMetadata(done func(ok bool)) {
	x.exec.Dispatch(func() { x.metadata.initiate(nil, done) })
}

// Write sends msg. If the write fails, or [WriteOptions.LastMessage] is
// set, the call is finished and done receives [ClientStreamingRPC.OK].
func (x *ClientStreamingRPC) Write(msg any, opts WriteOptions, done func(ok bool)) {
	x.exec.Dispatch(func() { x.writer.initiate(msg, opts, done) })
}

// Finish half-closes the stream if necessary, then receives the response
// and final status. A call that has already finished reports its cached
// status.
func (x *ClientStreamingRPC) Finish(done func(err error)) {
	x.exec.Dispatch(func() { x.finisher.initiate(done) })
}
