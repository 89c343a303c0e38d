// File: dispatch/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor is the C4 component: the single submit-or-fallback surface
// client code calls. It combines the RingDispatcher (C2) and ReservePool
// (C3) per the spec's fallback chain: try the ring; on rejection, fall
// back to the reserve pool if one exists; otherwise fail with a Rejected
// error naming the ring as the cause.

package dispatch

import (
	"github.com/jupiter-go/jupiter/api"
)

// Executor implements api.Executor by combining a RingDispatcher and an
// optional ReservePool into one submit surface.
type Executor struct {
	ring    *RingDispatcher
	reserve *ReservePool
}

// NewExecutor wires ring and reserve into a single façade. reserve may be
// nil, in which case overflow always fails with "ring buffer is full".
func NewExecutor(ring *RingDispatcher, reserve *ReservePool) *Executor {
	return &Executor{ring: ring, reserve: reserve}
}

// Execute implements api.Executor. It never blocks on the ring path; it
// may block briefly on the reserve path only long enough to hand off to a
// spawned or idle worker goroutine.
func (e *Executor) Execute(item api.Item) error {
	if outcome := e.ring.Dispatch(item); outcome == api.Accepted {
		return nil
	}
	if e.reserve != nil {
		if outcome := e.reserve.Submit(item); outcome == api.Accepted {
			return nil
		}
		if e.reserve.max > 0 {
			return api.NewError(api.ErrCodeRejected, "reserve pool is full", api.ErrRejected)
		}
	}
	return api.NewError(api.ErrCodeRejected, "ring buffer is full", api.ErrRejected)
}

// Shutdown stops both the ring dispatcher and the reserve pool, in that
// order, so no new overflow work is accepted after the ring stops.
func (e *Executor) Shutdown() {
	e.ring.Shutdown()
	if e.reserve != nil {
		e.reserve.Shutdown()
	}
}

// Metrics returns the ring dispatcher's metrics, augmented with the
// reserve pool's rejection count when a reserve pool is configured.
func (e *Executor) Metrics() api.DispatcherMetrics {
	m := e.ring.Metrics()
	if e.reserve != nil {
		m.ReserveRejected = e.reserve.RejectedCount()
	}
	return m
}
