// File: task/response_task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ResponseTask is the C6 component: the pooled work item carrying
// (channel, response envelope) through the dispatcher. Pooling is
// grounded on the teacher's pool.SyncPool[T] (a generic sync.Pool
// wrapper), extended here with a reset hook so this task's own
// field-clearing contract lives next to the pool it's stored in rather
// than in a second, separately-called release step; the acquire -> run ->
// guaranteed-release discipline mirrors spec.md §4.6/§9's "acquire -> run
// -> release forms a scoped resource; release must happen on every exit
// path (including panics)."

package task

import (
	"fmt"

	"github.com/jupiter-go/jupiter/api"
	"github.com/jupiter-go/jupiter/pool"
	"github.com/sirupsen/logrus"
)

// Deliverer is the pending-invocation registry's delivery surface, kept
// as a narrow interface here so this package does not depend on the
// registry package and tests can supply their own deliverer. It
// takes an already-resolved result: deserialization is this task's job,
// not the registry's.
type Deliverer interface {
	Deliver(requestID api.RequestID, result *api.ResultWrapper)
}

var responseTaskPool = pool.NewSyncPool(
	func() *ResponseTask { return &ResponseTask{} },
	func(t *ResponseTask) {
		t.channel = nil
		t.response = api.ResponseEnvelope{}
		t.serializer = nil
		t.registry = nil
		t.resultNew = nil
	},
)

// ResponseTask carries (channel, response) from the I/O thread to a
// dispatcher worker. It is never on the ring and in the pool
// simultaneously: Acquire removes it from the pool, Run executes it, and
// the guaranteed-release block in Run returns it to the pool before the
// pool loses its last strong reference to that slot.
type ResponseTask struct {
	channel    api.Channel
	response   api.ResponseEnvelope
	serializer api.Serializer
	registry   Deliverer
	resultNew  func() any
}

// Acquire obtains a task from the pool and populates it. serializer and
// registry are threaded through explicitly rather than captured globally
// so the pool is reusable across multiple registries/serializers in
// tests.
func Acquire(channel api.Channel, response api.ResponseEnvelope, serializer api.Serializer, registry Deliverer, resultNew func() any) *ResponseTask {
	t := responseTaskPool.Get()
	t.channel = channel
	t.response = response
	t.serializer = serializer
	t.registry = registry
	t.resultNew = resultNew
	return t
}

// Run implements api.Item. It deserializes response.Bytes into a fresh
// typed result wrapper using the configured serializer, nulls the
// payload promptly, and delivers the result to the pending-invocation
// registry. The task's fields are cleared and it is returned to the pool
// on every exit path, including panics.
func (t *ResponseTask) Run() (runErr error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("task: response task panicked, recycling anyway")
		}
		t.release()
	}()

	requestID := t.response.RequestID
	resultPtr := t.resultNew()

	var result *api.ResultWrapper
	switch {
	case t.response.Status == api.StatusError:
		result = &api.ResultWrapper{Err: fmt.Errorf("remote error for request %s", requestID)}
	default:
		if err := t.serializer.Unmarshal(t.response.Bytes, resultPtr); err != nil {
			result = &api.ResultWrapper{Err: api.NewError(api.ErrCodeSerialization, "unmarshal response", err)}
		} else {
			result = &api.ResultWrapper{Value: resultPtr}
		}
	}
	t.response.Bytes = nil // null the wire payload the instant it is decoded

	t.registry.Deliver(requestID, result)
	return nil
}

// release returns the task to the pool, which clears every field via its
// configured reset hook before the slot is reused. Called from Run's
// deferred guaranteed-release block; never called twice for the same
// acquisition.
func (t *ResponseTask) release() {
	responseTaskPool.Put(t)
}

var _ api.Item = (*ResponseTask)(nil)
