// File: pool/objpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SyncPool generalizes sync.Pool over a typed creator/reset pair. sync.Pool
// alone can't stop a careless caller from handing back a value with stale
// fields still set; the reset hook runs inside Put so every value that
// reaches the shelf is already scrubbed, and Stats gives callers (tests,
// diagnostics) visibility into how often Get had to mint a
// fresh value instead of reusing a recycled one.

package pool

import (
	"sync"
	"sync/atomic"
)

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool wraps sync.Pool with an optional reset hook and lifetime
// get/miss counters.
type SyncPool[T any] struct {
	pool  *sync.Pool
	reset func(T)

	gets   atomic.Uint64
	misses atomic.Uint64
}

// Stats is a point-in-time snapshot of a SyncPool's lifetime usage.
type Stats struct {
	Gets   uint64
	Misses uint64
}

// NewSyncPool constructs a SyncPool that mints new values with creator. If
// reset is non-nil, it is invoked on every value passed to Put, before the
// value is returned to the shelf, so a reused value is never observed
// carrying a previous caller's fields.
func NewSyncPool[T any](creator func() T, reset func(T)) *SyncPool[T] {
	sp := &SyncPool[T]{reset: reset}
	sp.pool = &sync.Pool{New: func() any {
		sp.misses.Add(1)
		return creator()
	}}
	return sp
}

// Get returns a value from the pool, minting one via the configured
// creator on a pool miss.
func (sp *SyncPool[T]) Get() T {
	sp.gets.Add(1)
	return sp.pool.Get().(T)
}

// Put resets obj (if a reset hook was configured) and returns it to the
// pool for reuse.
func (sp *SyncPool[T]) Put(obj T) {
	if sp.reset != nil {
		sp.reset(obj)
	}
	sp.pool.Put(obj)
}

// Stats reports lifetime Get calls and how many of them missed the pool
// and required minting a fresh value.
func (sp *SyncPool[T]) Stats() Stats {
	return Stats{Gets: sp.gets.Load(), Misses: sp.misses.Load()}
}
