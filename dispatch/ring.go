// File: dispatch/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ring is the bounded, power-of-two MPMC slot array backing the
// RingDispatcher (C2). Producer claim uses a CAS on the tail cursor;
// consumer claim uses a CAS on the head cursor, so each published item is
// delivered to exactly one consumer (work-pool semantics) even with many
// producers and many consumer goroutines racing on the same ring.
//
// Based on the Vyukov MPMC bounded-queue pattern also used by the teacher's
// internal/concurrency.LockFreeQueue; generalized here to a power-of-two
// size computed via the spec's round-up-never-down rule.

package dispatch

import (
	"sync/atomic"

	"github.com/jupiter-go/jupiter/api"
)

const cacheLinePad = 64

type slot struct {
	sequence atomic.Uint64
	item     api.Item // cleared by the consumer after Run(), never left set
}

type ring struct {
	head uint64
	_    [cacheLinePad - 8]byte
	tail uint64
	_    [cacheLinePad - 8]byte
	mask uint64
	cap  uint64
	cells []slot
}

// newRing allocates a ring of the given power-of-two capacity. Callers must
// have already rounded capacity up; newRing panics on a non-power-of-two to
// catch programmer error early rather than silently misbehaving.
func newRing(capacity uint64) *ring {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("dispatch: ring capacity must be a power of two")
	}
	r := &ring{
		mask: capacity - 1,
		cap:  capacity,
		cells: make([]slot, capacity),
	}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}
	return r
}

// tryPublish attempts a non-blocking claim-and-publish of one slot. It
// returns false without blocking or allocating when the ring is full,
// matching the Disruptor tryNext/InsufficientCapacity contract.
func (r *ring) tryPublish(item api.Item) bool {
	for {
		tail := atomic.LoadUint64(&r.tail)
		idx := tail & r.mask
		c := &r.cells[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&r.tail, tail, tail+1) {
				c.item = item
				c.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false // full
		default:
			// another producer already advanced tail; retry
		}
	}
}

// tryConsume attempts a non-blocking claim of the next published item.
// Exactly one caller among any number of racing consumer goroutines wins
// each sequence number, giving work-pool (not broadcast) delivery.
func (r *ring) tryConsume() (api.Item, bool) {
	for {
		head := atomic.LoadUint64(&r.head)
		idx := head & r.mask
		c := &r.cells[idx]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&r.head, head, head+1) {
				item := c.item
				c.item = nil // help-GC / free-for-reuse invariant
				c.sequence.Store(head + r.mask + 1)
				return item, true
			}
		case dif < 0:
			return nil, false // empty
		default:
			// another consumer already advanced head; retry
		}
	}
}

func (r *ring) len() int {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	return int(tail - head)
}

func (r *ring) capacity() int {
	return int(r.cap)
}

// roundUpPow2 rounds n up to the next power of two, never down, matching
// the spec's tie-break rule for bufSize.
func roundUpPow2(n int) int {
	if n < 1 {
		return 1
	}
	v := uint64(n - 1)
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return int(v + 1)
}
