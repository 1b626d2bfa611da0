package rpc

import (
	agrpc "github.com/khangthk/asio-grpc"
	"google.golang.org/grpc"
)

// BidiStreamingRPC is a call with independent request and response
// streams. One Read, and one of Write or WritesDone, may be outstanding at
// the same time.
type BidiStreamingRPC struct {
	call
	starter    starter
	metadata   reader
	reader     reader
	writer     writer
	halfCloser halfCloser
	finisher   finisher
}

// StartBidiStreaming starts a bidirectional streaming call of method,
// delivering the stream to done.
//
// If starting fails, the call is finished before done is invoked with ok
// false, and the status is available from [BidiStreamingRPC.Err].
func StartBidiStreaming(exec *agrpc.Context, cc grpc.ClientConnInterface, method string, cctx *ClientContext, done func(rpc *BidiStreamingRPC, ok bool), opts ...StartOption) error {
	if err := validateStart(exec, cc, cctx); err != nil {
		return err
	}
	x := new(BidiStreamingRPC)
	x.init(exec, cc, grpc.StreamDesc{StreamName: MethodName(method), ClientStreams: true, ServerStreams: true}, method, cctx, nil, resolveStartOptions(opts))
	x.starter.init(&x.call, nil, func(ok bool) { done(x, ok) })
	x.metadata.init(&x.call, true, true)
	x.reader.init(&x.call, false, false)
	x.writer.init(&x.call, false)
	x.halfCloser.init(&x.call)
	x.finisher.init(&x.call)
	exec.Dispatch(x.starter.initiate)
	return nil
}

// ReadInitialMetadata receives the server's initial metadata, available
// from [ClientContext.Header] once done reports true. On failure the call
// is finished first.
func (x *BidiStreamingRPC) ReadInitialMetadata(done func(ok bool)) {
	x.exec.Dispatch(func() { x.metadata.initiate(nil, done) })
}

// Read receives the next response into msg, reporting false at the end of
// the stream. Use Finish to obtain the status.
func (x *BidiStreamingRPC) Read(msg any, done func(ok bool)) {
	x.exec.Dispatch(func() { x.reader.initiate(msg, done) })
}

// Write sends msg, half-closing the stream if [WriteOptions.LastMessage]
// is set. It reports false if the stream is broken, or was already
// half-closed.
func (x *BidiStreamingRPC) Write(msg any, opts WriteOptions, done func(ok bool)) {
	x.exec.Dispatch(func() { x.writer.initiate(msg, opts, done) })
}

// WritesDone half-closes the stream. It reports true without doing anything
// if the stream is already half-closed.
func (x *BidiStreamingRPC) WritesDone(done func(ok bool)) {
	x.exec.Dispatch(func() { x.halfCloser.initiate(done) })
}

// Finish half-closes the stream if necessary, then receives the final
// status, discarding any unread responses. A call that has already
// finished reports its cached status.
func (x *BidiStreamingRPC) Finish(done func(err error)) {
	x.exec.Dispatch(func() { x.finisher.initiate(done) })
}
