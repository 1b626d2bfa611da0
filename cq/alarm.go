package cq

import (
	"context"
	"sync"
	"time"
)

// Alarm delivers a single event to a [Poster] when a deadline passes, or
// early with OK false if cancelled. The zero value is ready to use. An Alarm
// may be Set again once its previous event has been delivered.
//
// If the poster has a Context method, as [CompletionQueue] does, the alarm
// is cancelled once that context is done.
type Alarm struct {
	poster Poster
	tag    any
	timer  *time.Timer
	stop   func() bool
	mu     sync.Mutex
	armed  bool
}

type contextPoster interface {
	Context() context.Context
}

// Set arms the alarm. It fails with [ErrAlarmArmed] if already armed, or
// with the error from [Poster.Begin].
func (x *Alarm) Set(p Poster, deadline time.Time, tag any) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.armed {
		return ErrAlarmArmed
	}
	if err := p.Begin(); err != nil {
		return err
	}
	x.armed = true
	x.poster = p
	x.tag = tag
	x.timer = time.AfterFunc(time.Until(deadline), x.fire)
	if cp, ok := p.(contextPoster); ok {
		x.stop = context.AfterFunc(cp.Context(), func() { x.Cancel() })
	}
	return nil
}

// Cancel delivers the pending event with OK false, returning false if the
// alarm was not armed (or had already fired).
func (x *Alarm) Cancel() bool {
	x.mu.Lock()
	if !x.armed {
		x.mu.Unlock()
		return false
	}
	x.timer.Stop()
	p, tag := x.disarmLocked()
	x.mu.Unlock()
	p.Complete(tag, false)
	return true
}

func (x *Alarm) fire() {
	x.mu.Lock()
	if !x.armed {
		x.mu.Unlock()
		return
	}
	p, tag := x.disarmLocked()
	x.mu.Unlock()
	p.Complete(tag, true)
}

func (x *Alarm) disarmLocked() (Poster, any) {
	p, tag := x.poster, x.tag
	if x.stop != nil {
		x.stop()
	}
	x.armed = false
	x.poster = nil
	x.tag = nil
	x.timer = nil
	x.stop = nil
	return p, tag
}
