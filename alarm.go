package agrpc

import (
	"time"

	"github.com/khangthk/asio-grpc/cq"
)

// Alarm waits for a deadline on a [Context]. Only one wait may be in flight
// at a time.
type Alarm struct {
	OperationBase
	c     *Context
	done  func(ok bool)
	slot  CancellationSlot
	alarm cq.Alarm
}

var _ Operation = (*Alarm)(nil)

// NewAlarm returns an alarm bound to c.
func NewAlarm(c *Context) *Alarm {
	return &Alarm{c: c}
}

// Wait calls done on the context once deadline passes (ok true), or once
// the wait is cancelled (ok false), via Cancel or the slot. It fails with
// [cq.ErrAlarmArmed] until the previous wait's done has been called, even
// if that wait was already cancelled.
func (x *Alarm) Wait(deadline time.Time, slot CancellationSlot, done func(ok bool)) error {
	if x.done != nil {
		return cq.ErrAlarmArmed
	}
	x.c.WorkStarted()
	x.done = done
	x.slot = slot
	slot.Assign(func() { x.alarm.Cancel() })
	if err := x.alarm.Set(x.c.backend, deadline, x); err != nil {
		slot.Clear()
		x.done = nil
		x.slot = CancellationSlot{}
		x.c.WorkFinished()
		if err == cq.ErrShutdown {
			return ErrContextClosed
		}
		return err
	}
	return nil
}

// Cancel ends a pending wait early, reporting whether one was pending.
func (x *Alarm) Cancel() bool {
	return x.alarm.Cancel()
}

// Complete implements [Operation].
func (x *Alarm) Complete(ok bool, _ *ThreadContext) {
	done := x.done
	x.done = nil
	x.slot.Clear()
	x.slot = CancellationSlot{}
	defer x.c.WorkFinished()
	done(ok)
}
