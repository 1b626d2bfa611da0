package agrpc

import (
	"context"
	"time"

	"github.com/khangthk/asio-grpc/cq"
)

// CompletionBackend is the tag-based event source a [Context] pumps. Event
// tags must be [Operation] values. [cq.CompletionQueue] is the default
// implementation.
type CompletionBackend interface {
	cq.Poster

	// Submit runs a blocking action, delivering its result as one event.
	Submit(tag any, action func() bool) error

	// Next pulls one event, see [cq.CompletionQueue.Next].
	Next(deadline time.Time) (cq.Event, cq.NextStatus)

	// TriggerWake enqueues a wake event, unblocking Next.
	TriggerWake()

	// Shutdown stops new submissions. Reserved events continue to drain.
	Shutdown()

	// Context is cancelled by Shutdown, signalling producers to abandon
	// long-running actions.
	Context() context.Context
}

var _ CompletionBackend = (*cq.CompletionQueue)(nil)
