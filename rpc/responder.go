package rpc

import (
	"context"
	"errors"
	"io"
	"reflect"

	agrpc "github.com/khangthk/asio-grpc"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// responder performs the network side of a stream. Each method either
// returns an error, in which case no event is delivered, or delivers
// exactly one event for tag to the completion backend. All methods are
// called from the loop goroutine.
type responder interface {
	// start opens the stream. A non-nil req is sent as the only request,
	// followed by a half-close.
	start(tag any, req any) error
	readInitialMetadata(tag any) error
	read(msg any, tag any) error
	write(msg any, last bool, tag any) error
	writesDone(tag any) error
	// finish resolves the final status, which is then available from
	// status.
	finish(tag any) error
	status() error
	// close releases the responder. It is called once, after finish has
	// completed.
	close()
}

// clientCall is the [grpc.ClientConnInterface] responder. Operations that
// touch the sending side of the stream run on the send lane, the rest run
// on the receive lane, so a read and a write may block concurrently, as
// gRPC permits.
type clientCall struct {
	cc       grpc.ClientConnInterface
	cctx     *ClientContext
	ctx      context.Context
	cancel   context.CancelFunc
	stop     func() bool
	stream   grpc.ClientStream
	startErr error
	recvErr  error
	last     any
	response any
	err      error
	method   string
	desc     grpc.StreamDesc
	send     lane
	recv     lane
}

func newClientCall(backend agrpc.CompletionBackend, cc grpc.ClientConnInterface, desc grpc.StreamDesc, method string, cctx *ClientContext, resp any) responder {
	ctx, cancel := context.WithCancel(cctx.Context())
	x := &clientCall{
		cc:       cc,
		cctx:     cctx,
		ctx:      ctx,
		cancel:   cancel,
		response: resp,
		method:   method,
		desc:     desc,
	}
	x.stop = context.AfterFunc(backend.Context(), cancel)
	x.send.start(backend, backend.Context().Done())
	x.recv.start(backend, backend.Context().Done())
	return x
}

func (x *clientCall) start(tag any, req any) error {
	return x.recv.submit(tag, func() bool {
		stream, err := x.cc.NewStream(x.ctx, &x.desc, x.method, x.cctx.opts...)
		if err != nil {
			x.startErr = err
			return false
		}
		x.stream = stream
		if req == nil {
			return true
		}
		if err := stream.SendMsg(req); err != nil {
			return false
		}
		return stream.CloseSend() == nil
	})
}

func (x *clientCall) readInitialMetadata(tag any) error {
	return x.recv.submit(tag, func() bool {
		md, err := x.stream.Header()
		if err != nil {
			return false
		}
		x.cctx.header = md
		return true
	})
}

func (x *clientCall) read(msg any, tag any) error {
	return x.recv.submit(tag, func() bool {
		if x.recvErr != nil {
			return false
		}
		if err := x.stream.RecvMsg(msg); err != nil {
			x.recvErr = err
			return false
		}
		x.last = msg
		return true
	})
}

func (x *clientCall) write(msg any, last bool, tag any) error {
	return x.send.submit(tag, func() bool {
		if err := x.stream.SendMsg(msg); err != nil {
			return false
		}
		if last {
			return x.stream.CloseSend() == nil
		}
		return true
	})
}

func (x *clientCall) writesDone(tag any) error {
	return x.send.submit(tag, func() bool {
		return x.stream.CloseSend() == nil
	})
}

func (x *clientCall) finish(tag any) error {
	return x.recv.submit(tag, func() bool {
		x.err = x.resolveStatus()
		if x.stream != nil {
			x.cctx.trailer = x.stream.Trailer()
		}
		return true
	})
}

// resolveStatus reads the stream to its end, returning the final status.
func (x *clientCall) resolveStatus() error {
	if x.stream == nil {
		return x.startErr
	}
	if x.recvErr == nil && !x.desc.ServerStreams {
		if x.response == nil {
			x.response = &emptypb.Empty{}
		}
		if err := x.stream.RecvMsg(x.response); err != nil {
			x.recvErr = err
		} else {
			return nil
		}
	}
	for x.recvErr == nil {
		x.recvErr = x.stream.RecvMsg(newMessageLike(x.last))
	}
	if errors.Is(x.recvErr, io.EOF) {
		return nil
	}
	return x.recvErr
}

func (x *clientCall) status() error { return x.err }

func (x *clientCall) close() {
	x.stop()
	x.cancel()
	x.send.close()
	x.recv.close()
}

// newMessageLike returns a new zero message of the same type as v, for
// discarding responses the caller never read.
func newMessageLike(v any) any {
	if v != nil {
		if t := reflect.TypeOf(v); t.Kind() == reflect.Pointer {
			return reflect.New(t.Elem()).Interface()
		}
	}
	return &emptypb.Empty{}
}
