// File: registry/invoke.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// InvokeRegistry is the C9 component: the pending-invocation map keyed by
// RequestID. Register stores a pending InvokeFuture and arms its
// eviction timer; Deliver resolves it exactly once; Cancel is the
// caller-initiated withdrawal path. Grounded on the teacher's preference
// for lock-free, per-entry coordination (internal/concurrency.LockFreeQueue)
// over a single sync.Mutex-guarded map: here a sync.Map supplies the
// lock-free lookup and each entry's "settled" flag is its own atomic.Bool.

package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jupiter-go/jupiter/api"
	"github.com/sirupsen/logrus"
)

// InvokeFuture is resolved at most once, by whichever of
// {delivery, explicit cancel, timeout} happens first.
type InvokeFuture struct {
	requestID api.RequestID
	done      chan struct{}
	settled   atomic.Bool

	result *api.ResultWrapper
	err    error
}

// Done returns a channel closed once the future is resolved.
func (f *InvokeFuture) Done() <-chan struct{} {
	return f.done
}

// Result returns the resolved value and error. Valid only after Done is
// closed; returns a nil *ResultWrapper and a nil error if called early.
func (f *InvokeFuture) Result() (*api.ResultWrapper, error) {
	return f.result, f.err
}

// Wait blocks until the future resolves or ctx is done, returning
// ctx.Err() in the latter case.
func (f *InvokeFuture) Wait(ctx context.Context) (*api.ResultWrapper, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *InvokeFuture) resolve(result *api.ResultWrapper, err error) bool {
	if !f.settled.CompareAndSwap(false, true) {
		return false
	}
	f.result = result
	f.err = err
	close(f.done)
	return true
}

type entry struct {
	future *InvokeFuture
	timer  *time.Timer
}

// InvokeRegistry tracks pending outbound calls until their response
// arrives, is explicitly cancelled, or times out. Deserialization happens
// upstream, at the ResponseTask that owns the envelope's bytes (spec.md
// §4.6: bytes are nulled promptly after deserialization, before the
// registry ever sees the entry) — the registry only resolves futures with
// the already-built *api.ResultWrapper.
type InvokeRegistry struct {
	entries sync.Map // api.RequestID -> *entry
}

// NewInvokeRegistry constructs an empty pending-invocation registry.
func NewInvokeRegistry() *InvokeRegistry {
	return &InvokeRegistry{}
}

// Register creates and stores a pending future for a fresh RequestID,
// arming its eviction timer for timeout.
func (r *InvokeRegistry) Register(timeout time.Duration) (api.RequestID, *InvokeFuture) {
	id := NewRequestID()
	fut := &InvokeFuture{requestID: id, done: make(chan struct{})}
	e := &entry{future: fut}
	e.timer = time.AfterFunc(timeout, func() {
		r.evict(id, fut)
	})
	r.entries.Store(id, e)
	return id, fut
}

func (r *InvokeRegistry) evict(id api.RequestID, fut *InvokeFuture) {
	if fut.resolve(nil, api.NewError(api.ErrCodeTimeout, "invocation timed out", api.ErrTimeout)) {
		r.entries.Delete(id)
	}
}

// Deliver looks up requestID and, if found, resolves its future with
// result and removes the registry entry. The caller (ResponseTask.Run)
// has already deserialized the wire payload and nulled it out by this
// point; the registry never touches raw bytes. A lookup miss (late or
// duplicate delivery) is logged and dropped — never panics.
func (r *InvokeRegistry) Deliver(requestID api.RequestID, result *api.ResultWrapper) {
	v, ok := r.entries.LoadAndDelete(requestID)
	if !ok {
		logrus.WithField("request_id", requestID).Debug("registry: duplicate or late delivery, dropping")
		return
	}
	e := v.(*entry)
	e.timer.Stop()

	if !e.future.resolve(result, result.Err) {
		logrus.WithField("request_id", requestID).Debug("registry: future already settled, dropping delivery")
	}
}

// Cancel is the explicit caller-initiated withdrawal path, e.g. on
// context cancellation. Resolves the future with context.Canceled.
func (r *InvokeRegistry) Cancel(id api.RequestID) {
	v, ok := r.entries.LoadAndDelete(id)
	if !ok {
		return
	}
	e := v.(*entry)
	e.timer.Stop()
	e.future.resolve(nil, context.Canceled)
}

// Len reports the number of currently pending invocations, for
// diagnostics and tests.
func (r *InvokeRegistry) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool { n++; return true })
	return n
}
