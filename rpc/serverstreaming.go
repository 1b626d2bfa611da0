package rpc

import (
	agrpc "github.com/khangthk/asio-grpc"
	"google.golang.org/grpc"
)

// ServerStreamingRPC is a call with a single request and a stream of
// responses.
type ServerStreamingRPC struct {
	call
	starter  starter
	metadata reader
	reader   reader
	finisher finisher
}

// StartServerStreaming starts a server-streaming call of method, sending
// req, and delivers the stream to done.
//
// If starting fails, the call is finished before done is invoked with ok
// false, and the status is available from [ServerStreamingRPC.Err].
func StartServerStreaming(exec *agrpc.Context, cc grpc.ClientConnInterface, method string, cctx *ClientContext, req any, done func(rpc *ServerStreamingRPC, ok bool), opts ...StartOption) error {
	if err := validateStart(exec, cc, cctx); err != nil {
		return err
	}
	x := new(ServerStreamingRPC)
	x.init(exec, cc, grpc.StreamDesc{StreamName: MethodName(method), ServerStreams: true}, method, cctx, nil, resolveStartOptions(opts))
	// the request is half-closed by start
	x.writesDone = true
	x.starter.init(&x.call, req, func(ok bool) { done(x, ok) })
	x.metadata.init(&x.call, true, true)
	x.reader.init(&x.call, false, true)
	x.finisher.init(&x.call)
	exec.Dispatch(x.starter.initiate)
	return nil
}

// ReadInitialMetadata receives the server's initial metadata, available
// from [ClientContext.Header] once done reports true. On failure the call
// is finished first.
func (x *ServerStreamingRPC) ReadInitialMetadata(done func(ok bool)) {
	x.exec.Dispatch(func() { x.metadata.initiate(nil, done) })
}

// Read receives the next response into msg. It reports false at the end of
// the stream, after finishing the call, so the status is available from
// [ServerStreamingRPC.Err].
func (x *ServerStreamingRPC) Read(msg any, done func(ok bool)) {
	x.exec.Dispatch(func() { x.reader.initiate(msg, done) })
}

// Finish receives the final status. A call that has already finished
// reports its cached status.
func (x *ServerStreamingRPC) Finish(done func(err error)) {
	x.exec.Dispatch(func() { x.finisher.initiate(done) })
}
