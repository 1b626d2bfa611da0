package agrpc

type (
	// Phase indexes one step of a multi-step interaction. The meaning of each
	// value is defined by the [PhaseHandler].
	Phase int

	// PhaseHandler receives the completion of each phase of a
	// [PhaseOperation]. OnPhase either finishes the interaction, by invoking
	// the user continuation, or starts another phase. A completion with ok
	// false at a non-terminal phase must lead to the interaction's finalize
	// phase, rather than its nominal next phase.
	PhaseHandler interface {
		OnPhase(phase Phase, ok bool, tc *ThreadContext)
	}

	// PhaseOperation is the chained-phase [Operation]. One value is reused
	// for every phase of an interaction, with exactly one phase in flight at
	// a time. Interactions with concurrent steps, such as a read and a write,
	// use one PhaseOperation per step.
	//
	// Each phase started counts as outstanding work on the context, which is
	// released after OnPhase returns, so chaining into the next phase keeps
	// the context alive.
	PhaseOperation struct {
		OperationBase
		c       *Context
		handler PhaseHandler
		phase   Phase
	}
)

var _ Operation = (*PhaseOperation)(nil)

// Init binds the operation to a context and handler. It must be called
// before the first Start.
func (x *PhaseOperation) Init(c *Context, handler PhaseHandler) {
	x.c = c
	x.handler = handler
}

// Start begins a phase, returning the operation as the tag to submit, either
// to the backend or via [Context.Submit].
func (x *PhaseOperation) Start(phase Phase) Operation {
	x.c.WorkStarted()
	x.phase = phase
	return x
}

// Abort undoes a Start whose submission failed.
func (x *PhaseOperation) Abort() {
	x.c.WorkFinished()
}

// Phase returns the most recently started phase.
func (x *PhaseOperation) Phase() Phase { return x.phase }

// Context returns the bound context.
func (x *PhaseOperation) Context() *Context { return x.c }

// Complete implements [Operation].
func (x *PhaseOperation) Complete(ok bool, tc *ThreadContext) {
	defer x.c.WorkFinished()
	x.handler.OnPhase(x.phase, ok, tc)
}
