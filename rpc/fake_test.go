package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	agrpc "github.com/khangthk/asio-grpc"
)

// fakeResponder completes each operation with a scripted result. Results
// default to true. It is only touched from the loop goroutine.
type fakeResponder struct {
	backend agrpc.CompletionBackend
	results map[string][]bool
	err     error
	calls   []string
	closed  int
}

func newFakeResponder(script map[string][]bool, err error) *fakeResponder {
	if script == nil {
		script = make(map[string][]bool)
	}
	return &fakeResponder{results: script, err: err}
}

func (x *fakeResponder) option() StartOption {
	return &startOptionImpl{func(opts *startOptions) {
		opts.newResponder = func(backend agrpc.CompletionBackend, _ grpc.ClientConnInterface, _ grpc.StreamDesc, _ string, _ *ClientContext, _ any) responder {
			x.backend = backend
			return x
		}
	}}
}

func (x *fakeResponder) deliver(name string, tag any) error {
	x.calls = append(x.calls, name)
	ok := true
	if r := x.results[name]; len(r) != 0 {
		ok = r[0]
		x.results[name] = r[1:]
	}
	return x.backend.Submit(tag, func() bool { return ok })
}

func (x *fakeResponder) start(tag any, _ any) error       { return x.deliver("start", tag) }
func (x *fakeResponder) readInitialMetadata(tag any) error { return x.deliver("metadata", tag) }
func (x *fakeResponder) read(_ any, tag any) error         { return x.deliver("read", tag) }
func (x *fakeResponder) writesDone(tag any) error          { return x.deliver("writesDone", tag) }
func (x *fakeResponder) finish(tag any) error              { return x.deliver("finish", tag) }
func (x *fakeResponder) status() error                     { return x.err }
func (x *fakeResponder) close()                            { x.closed++ }

func (x *fakeResponder) write(_ any, last bool, tag any) error {
	if last {
		return x.deliver("writeLast", tag)
	}
	return x.deliver("write", tag)
}

// fakeConn is never used by the fake responder, it only satisfies argument
// validation.
type fakeConn struct {
	grpc.ClientConnInterface
}

func newContext(t *testing.T) *agrpc.Context {
	t.Helper()
	c, err := agrpc.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
