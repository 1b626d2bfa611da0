package agrpc

import (
	"sync/atomic"
)

// CancellationSignal requests early termination of whatever in-flight action
// is currently connected to its slot. The zero value is ready to use.
//
// Emitting never destroys state, the connected action is expected to
// complete with ok false, driving its normal finalize path.
type CancellationSignal struct {
	handler atomic.Pointer[func()]
}

// CancellationSlot is the receiving end of a [CancellationSignal]. The zero
// value is not connected, and ignores every call.
type CancellationSlot struct {
	signal *CancellationSignal
}

// Slot returns the slot connected to this signal.
func (x *CancellationSignal) Slot() CancellationSlot {
	return CancellationSlot{signal: x}
}

// Emit invokes the assigned handler, if any, on the calling goroutine. Each
// assignment is invoked at most once. Safe from any goroutine.
func (x *CancellationSignal) Emit() {
	if fn := x.handler.Swap(nil); fn != nil {
		(*fn)()
	}
}

// Assign installs fn as the handler, replacing any previous one.
func (x CancellationSlot) Assign(fn func()) {
	if x.signal != nil {
		x.signal.handler.Store(&fn)
	}
}

// Clear removes the handler.
func (x CancellationSlot) Clear() {
	if x.signal != nil {
		x.signal.handler.Store(nil)
	}
}

// IsConnected reports whether the slot belongs to a signal.
func (x CancellationSlot) IsConnected() bool {
	return x.signal != nil
}

// HasHandler reports whether a handler is currently assigned.
func (x CancellationSlot) HasHandler() bool {
	return x.signal != nil && x.signal.handler.Load() != nil
}

// RegisterCancellation associates fn with a live interaction, to be invoked
// when the slot's signal is emitted.
func RegisterCancellation(slot CancellationSlot, fn func()) {
	slot.Assign(fn)
}
