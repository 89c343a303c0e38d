// File: dispatch/parkcond.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// parkCond is a condition-variable wrapper used by the Blocking and
// LiteBlocking wait policies. It tracks a parked-consumer count so
// LiteBlocking can elide the broadcast when it can prove nobody is waiting,
// and a generation counter so a signal racing with a consumer's decision to
// park is never lost: the consumer snapshots the generation before its last
// tryConsume, and only actually calls cond.Wait if the generation is still
// unchanged once it holds the lock. Shutdown is delivered by a single
// Broadcast from closeAndWake, not by a per-park goroutine, so parking stays
// cheap.

package dispatch

import (
	"sync"
	"sync/atomic"
)

type parkCond struct {
	mu     sync.Mutex
	cond   *sync.Cond
	parked atomic.Int32
	gen    uint64
	closed bool
}

func newParkCond() *parkCond {
	pc := &parkCond{}
	pc.cond = sync.NewCond(&pc.mu)
	return pc
}

// generation returns the current signal generation, to be snapshotted by a
// consumer before its last tryConsume attempt prior to parking. Any signal
// (publish or shutdown) that happens after this call is guaranteed to bump
// the generation under the same lock parkUntilSignalOrStop checks, closing
// the lost-wakeup window between "ring observed empty" and "goroutine
// actually parked."
func (p *parkCond) generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// parkUntilSignalOrStop parks the calling goroutine until the next signal
// (publish or shutdown), unless the generation has already advanced past
// seenGen (meaning a signal was missed between the caller's last empty
// tryConsume and this call) or the pool has already been closed, in which
// case it returns immediately so the caller retries tryConsume right away
// instead of blocking on a signal that already happened.
func (p *parkCond) parkUntilSignalOrStop(stopCh <-chan struct{}, seenGen uint64) {
	select {
	case <-stopCh:
		return
	default:
	}
	p.mu.Lock()
	if p.closed || p.gen != seenGen {
		p.mu.Unlock()
		return
	}
	p.parked.Add(1)
	p.cond.Wait()
	p.parked.Add(-1)
	p.mu.Unlock()
}

// signal wakes all parked consumers and advances the generation so any
// consumer mid-way through deciding whether to park observes the change.
func (p *parkCond) signal() {
	p.mu.Lock()
	p.gen++
	p.cond.Broadcast()
	p.mu.Unlock()
}

// hasParked reports whether any consumer is currently parked; LiteBlocking
// uses this to elide the broadcast on publish when nobody is waiting.
func (p *parkCond) hasParked() bool {
	return p.parked.Load() > 0
}

// closeAndWake is called exactly once at shutdown to release every parked
// consumer so it can observe the closed stop channel and exit. It marks the
// condition permanently closed so any consumer that has not yet reached
// cond.Wait also takes the fast immediate-return path instead of parking.
func (p *parkCond) closeAndWake() {
	p.mu.Lock()
	p.closed = true
	p.gen++
	p.cond.Broadcast()
	p.mu.Unlock()
}
