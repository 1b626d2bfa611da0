package rpc_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	eventloop "github.com/joeycumines/go-eventloop"
	inprocgrpc "github.com/joeycumines/go-inprocgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	agrpc "github.com/khangthk/asio-grpc"
)

const (
	methodUnary        = "/test.TestService/Unary"
	methodServerStream = "/test.TestService/ServerStream"
	methodClientStream = "/test.TestService/ClientStream"
	methodBidiStream   = "/test.TestService/BidiStream"
	methodMissing      = "/test.Missing/Method"
)

type testServiceServer interface {
	Unary(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	ServerStream(*wrapperspb.StringValue, grpc.ServerStream) error
	ClientStream(grpc.ServerStream) error
	BidiStream(grpc.ServerStream) error
}

var testServiceDesc = grpc.ServiceDesc{
	ServiceName: "test.TestService",
	HandlerType: (*testServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Unary",
			Handler:    testUnaryHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ServerStream",
			Handler:       testServerStreamHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "ClientStream",
			Handler:       testClientStreamHandler,
			ClientStreams: true,
		},
		{
			StreamName:    "BidiStream",
			Handler:       testBidiStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "test.proto",
}

func testUnaryHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(testServiceServer).Unary(ctx, in)
}

func testServerStreamHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(testServiceServer).ServerStream(in, stream)
}

func testClientStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(testServiceServer).ClientStream(stream)
}

func testBidiStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(testServiceServer).BidiStream(stream)
}

type echoServer struct{}

func (s *echoServer) Unary(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("test-header"); len(vals) > 0 {
			_ = grpc.SetHeader(ctx, metadata.Pairs("echo-header", vals[0]))
		}
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs("echo-trailer", "trailer-value"))
	if req.GetValue() == "fail" {
		return nil, status.Error(codes.AlreadyExists, "already exists")
	}
	return &wrapperspb.StringValue{Value: "echo: " + req.GetValue()}, nil
}

func (s *echoServer) ServerStream(req *wrapperspb.StringValue, stream grpc.ServerStream) error {
	if err := stream.SendHeader(metadata.Pairs("echo-header", req.GetValue())); err != nil {
		return err
	}
	for i := range 3 {
		if err := stream.SendMsg(&wrapperspb.StringValue{
			Value: fmt.Sprintf("%s:%d", req.GetValue(), i),
		}); err != nil {
			return err
		}
	}
	if req.GetValue() == "fail" {
		return status.Error(codes.DataLoss, "stream failed")
	}
	return nil
}

func (s *echoServer) ClientStream(stream grpc.ServerStream) error {
	var count int
	for {
		in := new(wrapperspb.StringValue)
		err := stream.RecvMsg(in)
		if err == io.EOF {
			return stream.SendMsg(&wrapperspb.StringValue{
				Value: fmt.Sprintf("received %d messages", count),
			})
		}
		if err != nil {
			return err
		}
		count++
	}
}

func (s *echoServer) BidiStream(stream grpc.ServerStream) error {
	for {
		in := new(wrapperspb.StringValue)
		err := stream.RecvMsg(in)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := stream.SendMsg(&wrapperspb.StringValue{
			Value: "bidi: " + in.GetValue(),
		}); err != nil {
			return err
		}
	}
}

// newTestLoop creates a new event loop, starts it, and registers cleanup.
func newTestLoop(t testing.TB) *eventloop.Loop {
	t.Helper()
	loop, err := eventloop.New()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

// newTestChannel creates an in-process channel serving echoServer.
func newTestChannel(t testing.TB) *inprocgrpc.Channel {
	t.Helper()
	ch := inprocgrpc.NewChannel(inprocgrpc.WithLoop(newTestLoop(t)))
	ch.RegisterService(&testServiceDesc, &echoServer{})
	return ch
}

func newTestContext(t testing.TB, opts ...agrpc.ContextOption) *agrpc.Context {
	t.Helper()
	c, err := agrpc.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func str(v string) *wrapperspb.StringValue {
	return &wrapperspb.StringValue{Value: v}
}
