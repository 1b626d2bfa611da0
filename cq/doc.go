// Package cq implements an in-process completion queue: the tag-based event
// source that an [github.com/khangthk/asio-grpc.Context] multiplexes with
// its own deferred work.
//
// Producers reserve an event with [CompletionQueue.Begin], and later deliver
// it with [CompletionQueue.Complete], or hand a blocking action to
// [CompletionQueue.Submit]. A single consumer pulls events with
// [CompletionQueue.Next], bounded by a deadline.
//
// # Shutdown
//
// [CompletionQueue.Shutdown] stops new reservations. Events already reserved
// are still delivered by Next, which reports [Shutdown] once the queue has
// drained. [CompletionQueue.Context] is cancelled by Shutdown, so blocking
// producers can abandon their work.
//
// # Wake events
//
// [CompletionQueue.TriggerWake] enqueues an [Event] with Wake set. It needs no
// reservation and is accepted even after shutdown, which makes it usable to
// unblock a consumer sitting in Next with no deadline.
package cq
