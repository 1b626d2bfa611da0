// Package rpc provides client-side gRPC calls driven by an
// [github.com/khangthk/asio-grpc.Context].
//
// Each call is a small state machine. Its operations are initiated on the
// context's goroutine (initiation from elsewhere is dispatched there), the
// blocking gRPC work runs off-loop, and every continuation is delivered by
// the context as a completion event. The context is kept alive for as long
// as any step of a call is outstanding.
//
// # Streams
//
// [StartClientStreaming], [StartServerStreaming] and [StartBidiStreaming]
// open a stream and deliver the resulting handle to their continuation. A
// stream must be finished with Finish, which reports the final status as a
// [google.golang.org/grpc/status] error. Some failures finish the stream
// implicitly:
//
//   - a failed start
//   - a failed ReadInitialMetadata
//   - a failed server-streaming Read
//   - a failed client-streaming Write, or any last Write
//
// After an implicit finish, Finish reports the cached status without
// touching the network.
//
// On a bidirectional stream, one Read and one Write (or WritesDone) may be
// outstanding at the same time. No other overlap is permitted.
//
// # Unary calls
//
// [Request] performs a unary call, delivering its status to the
// continuation.
//
// # Cancellation
//
// [ClientContext.TryCancel] cancels a call at any point. The
// [WithCancellationSlot] start option binds TryCancel to an
// [github.com/khangthk/asio-grpc.CancellationSlot] until the call reaches
// its terminal phase. Calls are also cancelled when the completion backend
// shuts down.
//
// # Race detection
//
// Stream operations reach their off-loop goroutines through
// [code.hybscloud.com/lfq.SPSC] lanes, which order their slots with
// acquire/release on the index alone. The race detector cannot observe that
// ordering, so programs driving streams report false positives under -race.
// Unary calls do not use lanes.
package rpc
