package rpc_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	agrpc "github.com/khangthk/asio-grpc"
	"github.com/khangthk/asio-grpc/rpc"
)

func TestRequest_unary(t *testing.T) {
	ch := newTestChannel(t)
	c := newTestContext(t)
	cctx := rpc.NewClientContext(metadata.NewOutgoingContext(context.Background(),
		metadata.Pairs("test-header", "header-value")))

	resp := new(wrapperspb.StringValue)
	var calls int
	var result error
	require.NoError(t, rpc.Request(c, ch, methodUnary, cctx, str("hello"), resp, func(err error) {
		calls++
		result = err
	}))

	assert.True(t, c.Run())
	assert.Equal(t, 1, calls)
	assert.NoError(t, result)
	assert.Equal(t, "echo: hello", resp.GetValue())
	assert.Equal(t, []string{"header-value"}, cctx.Header().Get("echo-header"))
	assert.Equal(t, []string{"trailer-value"}, cctx.Trailer().Get("echo-trailer"))
}

func TestRequest_status(t *testing.T) {
	ch := newTestChannel(t)
	c := newTestContext(t)

	var result error
	require.NoError(t, rpc.Request(c, ch, methodUnary, rpc.NewClientContext(context.Background()), str("fail"), new(wrapperspb.StringValue), func(err error) {
		result = err
	}))

	c.Run()
	assert.Equal(t, codes.AlreadyExists, status.Code(result))
}

func TestRequest_invalidArguments(t *testing.T) {
	ch := newTestChannel(t)
	c := newTestContext(t)
	cctx := rpc.NewClientContext(context.Background())
	done := func(error) { t.Error("unexpected completion") }

	assert.ErrorIs(t, rpc.Request(nil, ch, methodUnary, cctx, str(""), new(wrapperspb.StringValue), done), rpc.ErrNilExecutor)
	assert.ErrorIs(t, rpc.Request(c, nil, methodUnary, cctx, str(""), new(wrapperspb.StringValue), done), rpc.ErrNilConn)
	assert.ErrorIs(t, rpc.Request(c, ch, methodUnary, nil, str(""), new(wrapperspb.StringValue), done), rpc.ErrNilClientContext)
	assert.False(t, c.Run())
}

func TestServerStreaming_readsUntilEnd(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c := newTestContext(t)
	cctx := rpc.NewClientContext(context.Background())

	var (
		got      []string
		header   []string
		readErr  error
		finished []error
	)
	require.NoError(t, rpc.StartServerStreaming(c, ch, methodServerStream, cctx, str("x"), func(call *rpc.ServerStreamingRPC, ok bool) {
		if !assert.True(t, ok) {
			return
		}
		call.ReadInitialMetadata(func(ok bool) {
			assert.True(t, ok)
			header = cctx.Header().Get("echo-header")
			var read func()
			read = func() {
				msg := new(wrapperspb.StringValue)
				call.Read(msg, func(ok bool) {
					if ok {
						got = append(got, msg.GetValue())
						read()
						return
					}
					// the failed read has already finished the call
					readErr = call.Err()
					call.Finish(func(err error) { finished = append(finished, err) })
				})
			}
			read()
		})
	}))

	assert.True(t, c.Run())
	assert.Equal(t, []string{"x"}, header)
	assert.Equal(t, []string{"x:0", "x:1", "x:2"}, got)
	assert.NoError(t, readErr)
	assert.Equal(t, []error{nil}, finished)
}

func TestServerStreaming_statusAfterMessages(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c := newTestContext(t)

	var (
		count int
		call  *rpc.ServerStreamingRPC
	)
	require.NoError(t, rpc.StartServerStreaming(c, ch, methodServerStream, rpc.NewClientContext(context.Background()), str("fail"), func(x *rpc.ServerStreamingRPC, ok bool) {
		call = x
		var read func()
		read = func() {
			msg := new(wrapperspb.StringValue)
			x.Read(msg, func(ok bool) {
				if ok {
					count++
					read()
				}
			})
		}
		read()
	}))

	c.Run()
	require.NotNil(t, call)
	assert.Equal(t, 3, count)
	assert.False(t, call.OK())
	assert.Equal(t, codes.DataLoss, status.Code(call.Err()))
}

func TestClientStreaming_lastWriteFinishes(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c := newTestContext(t)
	resp := new(wrapperspb.StringValue)

	var (
		writes   []bool
		finished []error
	)
	require.NoError(t, rpc.StartClientStreaming(c, ch, methodClientStream, rpc.NewClientContext(context.Background()), resp, func(call *rpc.ClientStreamingRPC, ok bool) {
		if !assert.True(t, ok) {
			return
		}
		call.Write(str("a"), rpc.WriteOptions{}, func(ok bool) {
			writes = append(writes, ok)
			call.Write(str("b"), rpc.WriteOptions{}, func(ok bool) {
				writes = append(writes, ok)
				call.Write(str("c"), rpc.WriteOptions{LastMessage: true}, func(ok bool) {
					writes = append(writes, ok)
					call.Write(str("d"), rpc.WriteOptions{}, func(ok bool) {
						writes = append(writes, ok)
						call.Finish(func(err error) { finished = append(finished, err) })
					})
				})
			})
		})
	}))

	assert.True(t, c.Run())
	assert.Equal(t, []bool{true, true, true, false}, writes)
	assert.Equal(t, []error{nil}, finished)
	assert.Equal(t, "received 3 messages", resp.GetValue())
}

func TestClientStreaming_finishHalfCloses(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c := newTestContext(t)
	resp := new(wrapperspb.StringValue)

	var finished []error
	require.NoError(t, rpc.StartClientStreaming(c, ch, methodClientStream, rpc.NewClientContext(context.Background()), resp, func(call *rpc.ClientStreamingRPC, ok bool) {
		call.Write(str("a"), rpc.WriteOptions{}, func(bool) {
			call.Finish(func(err error) {
				finished = append(finished, err)
				call.Finish(func(err error) { finished = append(finished, err) })
			})
		})
	}))

	assert.True(t, c.Run())
	assert.Equal(t, []error{nil, nil}, finished)
	assert.Equal(t, "received 1 messages", resp.GetValue())
}

func TestBidiStreaming_pingPong(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c := newTestContext(t)

	var (
		got      []string
		lastRead *bool
		finished []error
	)
	require.NoError(t, rpc.StartBidiStreaming(c, ch, methodBidiStream, rpc.NewClientContext(context.Background()), func(call *rpc.BidiStreamingRPC, ok bool) {
		if !assert.True(t, ok) {
			return
		}
		var exchange func(values ...string)
		exchange = func(values ...string) {
			if len(values) == 0 {
				call.WritesDone(func(ok bool) {
					assert.True(t, ok)
					call.Read(new(wrapperspb.StringValue), func(ok bool) {
						lastRead = &ok
						call.Finish(func(err error) { finished = append(finished, err) })
					})
				})
				return
			}
			call.Write(str(values[0]), rpc.WriteOptions{}, func(ok bool) {
				assert.True(t, ok)
				msg := new(wrapperspb.StringValue)
				call.Read(msg, func(ok bool) {
					assert.True(t, ok)
					got = append(got, msg.GetValue())
					exchange(values[1:]...)
				})
			})
		}
		exchange("a", "b", "c")
	}))

	assert.True(t, c.Run())
	assert.Equal(t, []string{"bidi: a", "bidi: b", "bidi: c"}, got)
	if assert.NotNil(t, lastRead) {
		assert.False(t, *lastRead)
	}
	assert.Equal(t, []error{nil}, finished)
}

func TestBidiStreaming_readAndWriteConcurrently(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c := newTestContext(t)

	var (
		order    []string
		finished []error
	)
	require.NoError(t, rpc.StartBidiStreaming(c, ch, methodBidiStream, rpc.NewClientContext(context.Background()), func(call *rpc.BidiStreamingRPC, ok bool) {
		msg := new(wrapperspb.StringValue)
		// the read is outstanding until the server echoes the write
		call.Read(msg, func(ok bool) {
			assert.True(t, ok)
			order = append(order, "read "+msg.GetValue())
			call.Finish(func(err error) { finished = append(finished, err) })
		})
		call.Write(str("a"), rpc.WriteOptions{LastMessage: true}, func(ok bool) {
			assert.True(t, ok)
			order = append(order, "write")
		})
	}))

	assert.True(t, c.Run())
	assert.ElementsMatch(t, []string{"write", "read bidi: a"}, order)
	assert.Equal(t, []error{nil}, finished)
}

func TestStart_unimplementedFinishes(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c := newTestContext(t)

	var (
		started  []bool
		startErr error
		finished []error
	)
	require.NoError(t, rpc.StartBidiStreaming(c, ch, methodMissing, rpc.NewClientContext(context.Background()), func(call *rpc.BidiStreamingRPC, ok bool) {
		started = append(started, ok)
		startErr = call.Err()
		call.Read(new(wrapperspb.StringValue), func(ok bool) {
			assert.False(t, ok)
			call.Finish(func(err error) { finished = append(finished, err) })
		})
	}))

	assert.True(t, c.Run())
	assert.Equal(t, []bool{false}, started)
	assert.Equal(t, codes.Unimplemented, status.Code(startErr))
	if assert.Len(t, finished, 1) {
		assert.Equal(t, startErr, finished[0])
	}
}

func TestWithCancellationSlot(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c := newTestContext(t)

	var (
		sig      agrpc.CancellationSignal
		bound    bool
		readOK   *bool
		finished error
	)
	require.NoError(t, rpc.StartBidiStreaming(c, ch, methodBidiStream, rpc.NewClientContext(context.Background()), func(call *rpc.BidiStreamingRPC, ok bool) {
		if !assert.True(t, ok) {
			return
		}
		bound = sig.Slot().HasHandler()
		sig.Emit()
		call.Read(new(wrapperspb.StringValue), func(ok bool) {
			readOK = &ok
			call.Finish(func(err error) { finished = err })
		})
	}, rpc.WithCancellationSlot(sig.Slot())))

	assert.True(t, c.Run())
	assert.True(t, bound)
	if assert.NotNil(t, readOK) {
		assert.False(t, *readOK)
	}
	assert.Equal(t, codes.Canceled, status.Code(finished))
	assert.False(t, sig.Slot().HasHandler())
}

func TestClose_cancelsInFlightCalls(t *testing.T) {
	skipRace(t)
	ch := newTestChannel(t)
	c, err := agrpc.New()
	require.NoError(t, err)

	var started bool
	require.NoError(t, rpc.StartBidiStreaming(c, ch, methodBidiStream, rpc.NewClientContext(context.Background()), func(call *rpc.BidiStreamingRPC, ok bool) {
		started = ok
		// never answered, the server only echoes
		call.Read(new(wrapperspb.StringValue), func(bool) {
			t.Error("continuation after close")
		})
	}))
	c.RunWhile(func() bool { return !started })
	require.True(t, started)

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close did not return")
	}
}

func TestRequest_logging(t *testing.T) {
	ch := newTestChannel(t)
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
	c := newTestContext(t, agrpc.WithLogger(logger))

	require.NoError(t, rpc.Request(c, ch, methodUnary, rpc.NewClientContext(context.Background()), str("x"), new(wrapperspb.StringValue), func(error) {}))
	c.Run()

	out := buf.String()
	assert.Contains(t, out, `"msg":"rpc: call started"`)
	assert.Contains(t, out, `"msg":"rpc: call finished"`)
	assert.Contains(t, out, `"method":"/test.TestService/Unary"`)
	assert.Contains(t, out, `"code":"OK"`)
}
