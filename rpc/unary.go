package rpc

import (
	"context"

	agrpc "github.com/khangthk/asio-grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

type unaryCall struct {
	exec   *agrpc.Context
	cc     grpc.ClientConnInterface
	cctx   *ClientContext
	req    any
	resp   any
	err    error
	done   func(err error)
	slot   agrpc.CancellationSlot
	method string
	serial uint32
	op     agrpc.PhaseOperation
}

// Request performs a unary call of method, receiving the response into
// resp, then delivers the status to done. The call is cancelled if the
// completion backend shuts down while it is in flight.
func Request(exec *agrpc.Context, cc grpc.ClientConnInterface, method string, cctx *ClientContext, req, resp any, done func(err error), opts ...StartOption) error {
	if err := validateStart(exec, cc, cctx); err != nil {
		return err
	}
	cfg := resolveStartOptions(opts)
	x := &unaryCall{
		exec:   exec,
		cc:     cc,
		cctx:   cctx,
		req:    req,
		resp:   resp,
		done:   done,
		slot:   cfg.slot,
		method: method,
		serial: nextSerial(),
	}
	x.op.Init(exec, x)
	exec.Dispatch(x.initiate)
	return nil
}

func (x *unaryCall) initiate() {
	x.slot.Assign(x.cctx.TryCancel)
	x.exec.Logger().Debug().
		Uint64("call", uint64(x.serial)).
		Str("method", x.method).
		Log("rpc: call started")
	if err := x.exec.Backend().Submit(x.op.Start(phaseFinish), x.invoke); err != nil {
		x.slot.Clear()
		x.op.Abort()
		x.exec.Logger().Debug().
			Uint64("call", uint64(x.serial)).
			Str("method", x.method).
			Err(err).
			Log("rpc: operation dropped")
	}
}

func (x *unaryCall) invoke() bool {
	ctx, cancel := context.WithCancel(x.cctx.Context())
	defer cancel()
	defer context.AfterFunc(x.exec.Backend().Context(), cancel)()
	x.err = statusError(x.cc.Invoke(ctx, x.method, x.req, x.resp, x.cctx.unaryOptions()...))
	return true
}

func (x *unaryCall) OnPhase(agrpc.Phase, bool, *agrpc.ThreadContext) {
	x.slot.Clear()
	x.exec.Logger().Debug().
		Uint64("call", uint64(x.serial)).
		Str("method", x.method).
		Stringer("code", status.Code(x.err)).
		Log("rpc: call finished")
	x.done(x.err)
}
