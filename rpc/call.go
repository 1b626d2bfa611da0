package rpc

import (
	"context"
	"errors"

	"code.hybscloud.com/atomix"
	"github.com/joeycumines/logiface"
	agrpc "github.com/khangthk/asio-grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	phaseInitiate agrpc.Phase = iota
	phaseLastWrite
	phaseWritesDone
	phaseFinish
)

// callSerial numbers calls for log correlation.
var callSerial atomix.Uint32

func nextSerial() uint32 {
	return callSerial.Add(1)
}

// call is the state shared by every step of one stream. It is only accessed
// from the loop goroutine.
type call struct {
	exec       *agrpc.Context
	cctx       *ClientContext
	responder  responder
	logger     *logiface.Logger[logiface.Event]
	slot       agrpc.CancellationSlot
	err        error
	waiters    []func()
	method     string
	serial     uint32
	finishing  bool
	finished   bool
	writesDone bool
}

// statusError converts err to a [status] error.
func statusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Unknown, err.Error())
}

func validateStart(exec *agrpc.Context, cc grpc.ClientConnInterface, cctx *ClientContext) error {
	switch {
	case exec == nil:
		return ErrNilExecutor
	case cc == nil:
		return ErrNilConn
	case cctx == nil:
		return ErrNilClientContext
	}
	return nil
}

func (x *call) init(exec *agrpc.Context, cc grpc.ClientConnInterface, desc grpc.StreamDesc, method string, cctx *ClientContext, resp any, cfg *startOptions) {
	x.exec = exec
	x.cctx = cctx
	x.logger = exec.Logger()
	x.slot = cfg.slot
	x.method = method
	x.serial = nextSerial()
	x.responder = cfg.newResponder(exec.Backend(), cc, desc, method, cctx, resp)
}

// OK reports whether the call finished with an OK status. It is also true
// before the call has finished.
func (x *call) OK() bool { return x.err == nil }

// Err returns the final status of a finished call, as a
// [google.golang.org/grpc/status] error, or nil.
func (x *call) Err() error { return x.err }

// ClientContext returns the context the call was started with.
func (x *call) ClientContext() *ClientContext { return x.cctx }

// Executor returns the context that delivers the call's completions.
func (x *call) Executor() *agrpc.Context { return x.exec }

// Cancel cancels the call, see [ClientContext.TryCancel].
func (x *call) Cancel() { x.cctx.TryCancel() }

func (x *call) started() {
	x.slot.Assign(x.cctx.TryCancel)
	x.logger.Debug().
		Uint64("call", uint64(x.serial)).
		Str("method", x.method).
		Log("rpc: call started")
}

// initiate starts a phase of op, submitting it via fn. Submission fails
// only once the backend has shut down, in which case the step is dropped.
func (x *call) initiate(op *agrpc.PhaseOperation, phase agrpc.Phase, fn func(tag any) error) {
	if err := fn(op.Start(phase)); err != nil {
		op.Abort()
		x.logger.Debug().
			Uint64("call", uint64(x.serial)).
			Str("method", x.method).
			Err(err).
			Log("rpc: operation dropped")
	}
}

// finishThen arranges for fn to run on the loop once the call has finished.
// If no finish is underway yet, it is started as the phaseFinish of op, and
// the handler of that phase must call complete and then fn itself.
func (x *call) finishThen(op *agrpc.PhaseOperation, fn func()) {
	switch {
	case x.finished:
		x.exec.Post(fn)
	case x.finishing:
		x.waiters = append(x.waiters, fn)
	default:
		x.finishing = true
		x.initiate(op, phaseFinish, x.responder.finish)
	}
}

// complete records the final status, releasing the responder.
func (x *call) complete() {
	if x.finished {
		return
	}
	x.finished = true
	x.finishing = true
	x.err = statusError(x.responder.status())
	x.slot.Clear()
	x.responder.close()

	x.logger.Debug().
		Uint64("call", uint64(x.serial)).
		Str("method", x.method).
		Stringer("code", status.Code(x.err)).
		Log("rpc: call finished")

	waiters := x.waiters
	x.waiters = nil
	for _, fn := range waiters {
		x.exec.Post(fn)
	}
}

// post delivers ok to done as a fresh completion.
func (x *call) post(done func(ok bool), ok bool) {
	x.exec.Post(func() { done(ok) })
}

// starter opens the stream, finishing it on failure.
type starter struct {
	call *call
	req  any
	done func(ok bool)
	op   agrpc.PhaseOperation
}

func (x *starter) init(c *call, req any, done func(ok bool)) {
	x.call = c
	x.req = req
	x.done = done
	x.op.Init(c.exec, x)
}

func (x *starter) initiate() {
	x.call.started()
	x.call.initiate(&x.op, phaseInitiate, func(tag any) error {
		return x.call.responder.start(tag, x.req)
	})
}

func (x *starter) OnPhase(phase agrpc.Phase, ok bool, _ *agrpc.ThreadContext) {
	switch phase {
	case phaseInitiate:
		if ok {
			x.done(true)
			return
		}
		x.call.finishThen(&x.op, func() { x.done(false) })
	case phaseFinish:
		x.call.complete()
		x.done(false)
	}
}

// reader receives initial metadata or a message. If finishOnFailure is
// set, a failed read finishes the call before reporting.
type reader struct {
	call            *call
	msg             any
	done            func(ok bool)
	op              agrpc.PhaseOperation
	metadata        bool
	finishOnFailure bool
}

func (x *reader) init(c *call, metadata, finishOnFailure bool) {
	x.call = c
	x.metadata = metadata
	x.finishOnFailure = finishOnFailure
	x.op.Init(c.exec, x)
}

func (x *reader) initiate(msg any, done func(ok bool)) {
	if x.call.finished {
		x.call.post(done, false)
		return
	}
	x.msg = msg
	x.done = done
	x.call.initiate(&x.op, phaseInitiate, x.submit)
}

func (x *reader) submit(tag any) error {
	if x.metadata {
		return x.call.responder.readInitialMetadata(tag)
	}
	return x.call.responder.read(x.msg, tag)
}

func (x *reader) report(ok bool) {
	done := x.done
	x.done = nil
	x.msg = nil
	done(ok)
}

func (x *reader) OnPhase(phase agrpc.Phase, ok bool, _ *agrpc.ThreadContext) {
	switch phase {
	case phaseInitiate:
		if ok || !x.finishOnFailure {
			x.report(ok)
			return
		}
		x.call.finishThen(&x.op, func() { x.report(false) })
	case phaseFinish:
		x.call.complete()
		x.report(false)
	}
}

// writer sends a message. If finalize is set, a failed write or any last
// write finishes the call, reporting OK.
type writer struct {
	call     *call
	done     func(ok bool)
	op       agrpc.PhaseOperation
	finalize bool
}

func (x *writer) init(c *call, finalize bool) {
	x.call = c
	x.finalize = finalize
	x.op.Init(c.exec, x)
}

func (x *writer) initiate(msg any, opts WriteOptions, done func(ok bool)) {
	if x.call.finished || x.call.writesDone {
		x.call.post(done, false)
		return
	}
	x.done = done
	phase := phaseInitiate
	if opts.LastMessage {
		x.call.writesDone = true
		phase = phaseLastWrite
	}
	x.call.initiate(&x.op, phase, func(tag any) error {
		return x.call.responder.write(msg, opts.LastMessage, tag)
	})
}

func (x *writer) report(ok bool) {
	done := x.done
	x.done = nil
	done(ok)
}

func (x *writer) OnPhase(phase agrpc.Phase, ok bool, _ *agrpc.ThreadContext) {
	switch phase {
	case phaseInitiate, phaseLastWrite:
		if !x.finalize || (ok && phase == phaseInitiate) {
			x.report(ok)
			return
		}
		x.call.finishThen(&x.op, func() { x.report(x.call.OK()) })
	case phaseFinish:
		x.call.complete()
		x.report(x.call.OK())
	}
}

// halfCloser signals the end of writes.
type halfCloser struct {
	call *call
	done func(ok bool)
	op   agrpc.PhaseOperation
}

func (x *halfCloser) init(c *call) {
	x.call = c
	x.op.Init(c.exec, x)
}

func (x *halfCloser) initiate(done func(ok bool)) {
	switch {
	case x.call.finished:
		x.call.post(done, false)
		return
	case x.call.writesDone:
		x.call.post(done, true)
		return
	}
	x.call.writesDone = true
	x.done = done
	x.call.initiate(&x.op, phaseWritesDone, x.call.responder.writesDone)
}

func (x *halfCloser) OnPhase(_ agrpc.Phase, ok bool, _ *agrpc.ThreadContext) {
	done := x.done
	x.done = nil
	done(ok)
}

// finisher is the caller-initiated finish: WritesDone if writes are still
// open, then the final status.
type finisher struct {
	call *call
	done func(err error)
	op   agrpc.PhaseOperation
}

func (x *finisher) init(c *call) {
	x.call = c
	x.op.Init(c.exec, x)
}

func (x *finisher) initiate(done func(err error)) {
	switch {
	case x.call.finished:
		x.call.exec.Post(func() { done(x.call.err) })
	case x.call.finishing:
		x.call.waiters = append(x.call.waiters, func() { done(x.call.err) })
	case !x.call.writesDone:
		x.call.finishing = true
		x.call.writesDone = true
		x.done = done
		x.call.initiate(&x.op, phaseWritesDone, x.call.responder.writesDone)
	default:
		x.call.finishing = true
		x.done = done
		x.call.initiate(&x.op, phaseFinish, x.call.responder.finish)
	}
}

func (x *finisher) OnPhase(phase agrpc.Phase, _ bool, _ *agrpc.ThreadContext) {
	switch phase {
	case phaseWritesDone:
		// the status is authoritative, whether or not the half-close
		// succeeded
		x.call.initiate(&x.op, phaseFinish, x.call.responder.finish)
	case phaseFinish:
		x.call.complete()
		done := x.done
		x.done = nil
		done(x.call.err)
	}
}
