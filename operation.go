package agrpc

import (
	"fmt"
	"sync/atomic"
)

type (
	// Operation is the unit of schedulable work, and the completion tag for
	// actions handed to the [CompletionBackend]. Implementations embed
	// [OperationBase].
	//
	// Complete is called exactly once per submission, on the goroutine running
	// the owning [Context]. The operation then belongs to its initiator again,
	// and may be re-submitted.
	Operation interface {
		Complete(ok bool, tc *ThreadContext)
		operationBase() *OperationBase
	}

	// Discarder may be implemented by an [Operation] to be told when it is
	// dropped during [Context.Close] instead of completed.
	Discarder interface {
		Discard()
	}

	// OperationBase supplies the intrusive queue link. It must be embedded by
	// value, and the containing operation must not be copied once submitted.
	OperationBase struct {
		self   Operation
		next   *OperationBase
		queued atomic.Bool
	}

	// FuncOperation adapts a plain callback into an [Operation]. The callback
	// receives the completion ok flag.
	FuncOperation struct {
		OperationBase
		Func func(ok bool, tc *ThreadContext)
	}

	// funcOperation backs Post, it carries one unit of work.
	funcOperation struct {
		OperationBase
		c  *Context
		fn func()
	}
)

var (
	_ Operation = (*FuncOperation)(nil)
	_ Operation = (*funcOperation)(nil)
	_ Discarder = (*funcOperation)(nil)
)

func (x *OperationBase) operationBase() *OperationBase { return x }

// claim marks the operation as queued, panicking if it already was.
func (x *OperationBase) claim(op Operation) {
	if !x.queued.CompareAndSwap(false, true) {
		panic(ErrOperationInUse)
	}
	x.self = op
	x.next = nil
}

// release clears the queue state, returning the owning operation.
func (x *OperationBase) release() Operation {
	op := x.self
	x.self = nil
	x.next = nil
	x.queued.Store(false)
	return op
}

// Complete implements [Operation].
func (x *FuncOperation) Complete(ok bool, tc *ThreadContext) {
	x.Func(ok, tc)
}

func (x *funcOperation) Complete(_ bool, tc *ThreadContext) {
	fn, c := x.fn, x.c
	x.fn, x.c = nil, nil
	tc.pool.put(x)
	defer c.WorkFinished()
	fn()
}

func (x *funcOperation) Discard() {
	x.fn, x.c = nil, nil
}

// tagOperation resolves a completion tag back to its operation.
func tagOperation(tag any) Operation {
	op, ok := tag.(Operation)
	if !ok {
		panic(fmt.Errorf("agrpc: completion tag %T is not an Operation", tag))
	}
	return op
}
