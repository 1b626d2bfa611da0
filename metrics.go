package agrpc

import (
	"sync/atomic"
)

// Metrics is a snapshot of the counters of a [Context], collected when
// enabled via [WithMetrics].
type Metrics struct {
	// LocalOperations counts operations completed from the local queue.
	LocalOperations uint64
	// RemoteBatches counts transfers from the remote queue.
	RemoteBatches uint64
	// RemoteOperations counts operations transferred from the remote queue.
	RemoteOperations uint64
	// BackendEvents counts backend events dispatched to operations.
	BackendEvents uint64
	// WakeEvents counts wake events received from the backend.
	WakeEvents uint64
	// Discarded counts operations dropped by Close.
	Discarded uint64
}

type metricsCounters struct {
	localOperations  atomic.Uint64
	remoteBatches    atomic.Uint64
	remoteOperations atomic.Uint64
	backendEvents    atomic.Uint64
	wakeEvents       atomic.Uint64
	discarded        atomic.Uint64
}

func (x *metricsCounters) snapshot() Metrics {
	if x == nil {
		return Metrics{}
	}
	return Metrics{
		LocalOperations:  x.localOperations.Load(),
		RemoteBatches:    x.remoteBatches.Load(),
		RemoteOperations: x.remoteOperations.Load(),
		BackendEvents:    x.backendEvents.Load(),
		WakeEvents:       x.wakeEvents.Load(),
		Discarded:        x.discarded.Load(),
	}
}

func (x *metricsCounters) addLocal() {
	if x != nil {
		x.localOperations.Add(1)
	}
}

func (x *metricsCounters) addRemote(n uint64) {
	if x != nil {
		x.remoteBatches.Add(1)
		x.remoteOperations.Add(n)
	}
}

func (x *metricsCounters) addEvent(wake bool) {
	if x == nil {
		return
	}
	if wake {
		x.wakeEvents.Add(1)
	} else {
		x.backendEvents.Add(1)
	}
}

func (x *metricsCounters) addDiscarded(n uint64) {
	if x != nil {
		x.discarded.Add(n)
	}
}
