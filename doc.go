// Package agrpc multiplexes a tag-based completion queue with user-submitted
// deferred work, on a single goroutine at a time, and provides the operation
// protocol that multi-step asynchronous interactions (such as gRPC calls) are
// built on.
//
// # Architecture
//
// A [Context] owns one [CompletionBackend] (by default a
// [github.com/khangthk/asio-grpc/cq.CompletionQueue]), a local queue for work
// submitted from the goroutine currently running the context, and a lock-free
// remote queue for work submitted from anywhere else. Each unit of work, and
// each completion tag handed to the backend, is an [Operation].
//
// The run family ([Context.Run], [Context.Poll], [Context.RunUntil],
// [Context.RunWhile], and the completion-queue-only variants) alternates
// between draining the local queue and pulling events off the backend,
// calling [Operation.Complete] for each. Completions always run on the
// goroutine driving the context, one at a time.
//
// # Work Accounting
//
// Liveness is driven entirely by [Context.WorkStarted] and
// [Context.WorkFinished]. Every action handed to the backend or queued must
// be bracketed by exactly one pair. When the count drops to zero, the context
// stops, and Run returns. [WorkGuard] holds a context open without any
// specific action in flight.
//
// # Multi-step Interactions
//
// [PhaseOperation] and [PhaseHandler] express an interaction as a small state
// machine keyed by a [Phase] index. Each phase re-submits the same operation
// with a new phase, and a completion with ok false moves the machine to its
// finalize phase. The rpc sub-package builds the gRPC client calls this way.
//
// Out-of-band cancellation is delivered through [CancellationSignal] and
// [CancellationSlot], which never touch the queues, they only request that
// the in-flight action complete unsuccessfully.
//
// # Thread Safety
//
//   - At most one goroutine may run a given Context at a time. Nested runs
//     panic with [ErrReentrantRun].
//   - [Context.Stop], [Context.Submit], [Context.Post], [Context.WorkStarted]
//     and [Context.WorkFinished] are safe from any goroutine.
//   - [ThreadContext] must only be used by the goroutine it was handed to.
//
// # Teardown
//
// [Context.Close] shuts the backend down and drains it. Pending completions
// and queued operations are discarded without being invoked, operations
// implementing [Discarder] are told so. Producers blocked on the network or
// a timer, such as alarms and rpc calls, observe the backend shutting down
// and complete early, so the drain terminates.
package agrpc
