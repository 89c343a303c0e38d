// File: dispatch/waitpolicy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WaitPolicy selects the CPU-vs-latency tradeoff a consumer goroutine makes
// once its cursor has caught up to the ring's producer cursor. Ordered from
// lowest CPU / highest mean latency to highest CPU / lowest mean latency.

package dispatch

import (
	"runtime"
	"time"
)

// WaitPolicy enumerates the park strategies a RingDispatcher consumer uses
// while the ring is empty. Selected at construction; immutable thereafter.
type WaitPolicy int

const (
	// Blocking parks on a condition variable; the producer signals on every
	// publish. Lowest CPU, highest wake-up latency.
	Blocking WaitPolicy = iota

	// LiteBlocking behaves like Blocking but the producer elides the signal
	// when it can prove no consumer is parked.
	LiteBlocking

	// PhasedBackoff spins for a bounded count, then yields for a bounded
	// count, then falls back to Blocking.
	PhasedBackoff

	// Sleeping spins with a ~60µs nanosleep between iterations.
	Sleeping

	// Yielding busy-spins with a cooperative yield every iteration.
	Yielding

	// BusySpin pure busy-spins; only sensible when workers <= physical cores.
	BusySpin
)

func (w WaitPolicy) String() string {
	switch w {
	case Blocking:
		return "blocking"
	case LiteBlocking:
		return "lite-blocking"
	case PhasedBackoff:
		return "phased-backoff"
	case Sleeping:
		return "sleeping"
	case Yielding:
		return "yielding"
	case BusySpin:
		return "busy-spin"
	default:
		return "unknown"
	}
}

// phasedSpinTimeout and phasedYieldTimeout are PhasedBackoff's default
// bounds, matching the Disruptor defaults named in the spec (1ms each).
const (
	phasedSpinTimeout  = time.Millisecond
	phasedYieldTimeout = time.Millisecond
	sleepingParkNanos  = 60 * time.Microsecond
)

// waiter drives one consumer's park/spin loop for a given policy. It is
// re-entered on every empty-ring observation and returns once told there may
// be new work (via cond signal, elapsed spin budget, or immediately for the
// best-effort policies).
type waiter struct {
	policy  WaitPolicy
	cond    *parkCond
	phase   int // 0=spin, 1=yield, 2=block; only meaningful for PhasedBackoff
	spinAt  time.Time
	yieldAt time.Time
}

func newWaiter(policy WaitPolicy, cond *parkCond) *waiter {
	return &waiter{policy: policy, cond: cond}
}

// wait blocks/spins/yields according to the policy, then returns so the
// caller can re-check the ring. stopCh allows prompt exit on shutdown.
// seenGen is the signal generation the caller observed via cond.generation()
// immediately before its last tryConsume; policies that park on cond use it
// to avoid blocking on a signal that already happened in that window.
func (w *waiter) wait(stopCh <-chan struct{}, seenGen uint64) {
	switch w.policy {
	case Blocking:
		w.cond.parkUntilSignalOrStop(stopCh, seenGen)
	case LiteBlocking:
		w.cond.parkUntilSignalOrStop(stopCh, seenGen)
	case PhasedBackoff:
		w.phasedWait(stopCh, seenGen)
	case Sleeping:
		time.Sleep(sleepingParkNanos)
	case Yielding:
		runtime.Gosched()
	case BusySpin:
		// pure busy spin: return immediately, caller retries right away.
	default:
		runtime.Gosched()
	}
}

func (w *waiter) phasedWait(stopCh <-chan struct{}, seenGen uint64) {
	now := time.Now()
	if w.spinAt.IsZero() {
		w.spinAt = now.Add(phasedSpinTimeout)
		w.yieldAt = w.spinAt.Add(phasedYieldTimeout)
	}
	switch {
	case now.Before(w.spinAt):
		// keep spinning, no sleep
	case now.Before(w.yieldAt):
		runtime.Gosched()
	default:
		w.cond.parkUntilSignalOrStop(stopCh, seenGen)
	}
}

// reset clears phase bookkeeping once work is found, so the next empty
// observation restarts the spin/yield/block progression from the top.
func (w *waiter) reset() {
	w.spinAt = time.Time{}
	w.yieldAt = time.Time{}
}
