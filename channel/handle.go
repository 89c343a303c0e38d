// File: channel/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle is the C5 component: a thin, identity-preserving wrapper over a
// live net.Conn, lazily attached exactly once per stream via a CAS into a
// per-stream attribute slot. Grounded on the teacher's
// internal/concurrency.LockFreeQueue preference for CAS-based, lock-free
// claim semantics, generalized here from a queue slot to a single-shot
// attachment slot.

package channel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/jupiter-go/jupiter/api"
	"github.com/jupiter-go/jupiter/dispatch"
)

// outboundBufSize is the outbound write queue's ring capacity per channel.
// Rounded up to a power of two by dispatch.NewRingDispatcher.
const outboundBufSize = 128

// highWatermark and lowWatermark are the fractions of outboundBufSize at
// which IsWritable flips false and true respectively, giving the watermark
// hysteresis band spec.md §4.5 calls "backpressure surfaced via isWritable
// — not by blocking": a single writer goroutine drains the queue, so
// Write itself never blocks the caller even when net.Conn.Write on the
// wire does.
const (
	highWatermarkNum, highWatermarkDen = 3, 4 // 75%
	lowWatermarkNum, lowWatermarkDen   = 1, 4 // 25%
)

// attrSlots holds the per-stream attribute slot the spec requires: a
// concurrent map from stream identity to handle, with the entry removed
// when the stream closes (spec §9, "externally keyed concurrent map...
// weak-by-identity"). net.Conn is not comparable across all
// implementations in a way usable as a map key directly, so the pointer
// identity of the concrete *net.TCPConn (or equivalent) is used via the
// conn itself, which is always a pointer type in practice.
var attrSlots sync.Map // net.Conn -> *Handle

// ioThreadKey is the context key a Handle's dedicated read loop stamps
// into the context it passes to handlers, so IsIOThread can answer
// "am I on the I/O thread for this channel" without faking a Java
// thread-local: the context carries a token minted once per handle.
type ioThreadKey struct{}

var nextID atomic.Uint64

// Handle implements api.Channel over a net.Conn.
type Handle struct {
	id      uint64
	conn    net.Conn
	ioToken *int // unique per-handle token, compared by pointer identity

	active   atomic.Bool
	writable atomic.Bool

	// outbound is a single-worker RingDispatcher used as this handle's
	// async outbound write queue: Write enqueues a writeItem and returns
	// immediately, a dedicated goroutine drains it against the wire, and
	// queue depth against outboundBufSize drives the writable watermark
	// instead of Write blocking the caller.
	outbound *dispatch.RingDispatcher
}

// writeItem is one queued outbound write, implementing dispatch's api.Item
// so the outbound RingDispatcher can run it on its single worker.
type writeItem struct {
	h        *Handle
	msg      []byte
	listener api.FutureListener
}

func (w *writeItem) Run() error {
	var err error
	if !w.h.active.Load() {
		err = api.NewError(api.ErrCodeStreamInactive, "channel is not active", api.ErrStreamInactive)
	} else {
		_, err = w.h.conn.Write(w.msg)
	}
	w.h.updateWatermark()
	if w.listener != nil {
		w.listener(w.h, err == nil)
	}
	return err
}

// Attach returns the unique Handle for conn, creating it on first call.
// Safe under concurrent callers: the loser of the race discards its
// candidate and returns the winner's handle, satisfying "attach(S)
// invoked concurrently by k threads yields the same handle to all k
// callers."
func Attach(conn net.Conn) *Handle {
	candidate := &Handle{
		id:      nextID.Add(1),
		conn:    conn,
		ioToken: new(int),
	}
	candidate.active.Store(true)
	candidate.writable.Store(true)

	outbound, err := dispatch.NewRingDispatcher(dispatch.Config{
		NumWorkers:        1,
		ThreadFactoryName: "channel-writer",
		BufSize:           outboundBufSize,
		WaitStrategy:      dispatch.Blocking,
		NUMANode:          -1,
	})
	if err != nil {
		// outboundBufSize is a positive constant, so NewRingDispatcher
		// cannot fail; a failure here means the constant itself is broken.
		panic(fmt.Sprintf("channel: invalid outbound dispatcher config: %v", err))
	}
	candidate.outbound = outbound

	actual, loaded := attrSlots.LoadOrStore(conn, candidate)
	if loaded {
		outbound.Shutdown()
	}
	return actual.(*Handle)
}

// Detach removes the attribute-slot entry for conn, mirroring "entry
// removed when the stream closes." Called by the connection watchdog
// once it has observed the stream go inactive.
func Detach(conn net.Conn) {
	attrSlots.Delete(conn)
}

// ID returns a short identifier, unique within the process and stable
// for the handle's life.
func (h *Handle) ID() string {
	return fmt.Sprintf("chan-%d", h.id)
}

// IsActive reflects the underlying stream at call time; no caching.
func (h *Handle) IsActive() bool {
	return h.active.Load()
}

// IsWritable reflects the outbound write queue's watermark at call time;
// no caching. It flips false once the queue depth crosses highWatermark
// and back to true once it drains below lowWatermark, so a caller polling
// IsWritable sees real backpressure instead of a value that is always
// true.
func (h *Handle) IsWritable() bool {
	return h.active.Load() && h.writable.Load()
}

// SetWritable lets a caller (tests, or a future non-ring transport) force
// the watermark flag directly; the outbound writer normally maintains it
// itself via updateWatermark.
func (h *Handle) SetWritable(w bool) {
	h.writable.Store(w)
}

// updateWatermark recomputes the writable flag from current outbound
// queue depth. Called by the writer after every drained item, and by
// Write after every enqueue attempt, accepted or rejected.
func (h *Handle) updateWatermark() {
	m := h.outbound.Metrics()
	if m.RingCapacity == 0 {
		return
	}
	depth := m.RingLen
	switch {
	case depth*highWatermarkDen >= m.RingCapacity*highWatermarkNum:
		h.writable.Store(false)
	case depth*lowWatermarkDen <= m.RingCapacity*lowWatermarkNum:
		h.writable.Store(true)
	}
}

// IsIOThread reports whether ctx was derived from this handle's I/O
// read-loop context, i.e. whether the caller is executing on the
// stream's I/O worker. The read loop stamps its token once via
// WithIOThread; any context derived from it (via context.WithValue
// chaining) still carries the same token pointer.
func (h *Handle) IsIOThread(ctx context.Context) bool {
	tok, ok := ctx.Value(ioThreadKey{}).(*int)
	return ok && tok == h.ioToken
}

// WithIOThread returns a context marked as running on this handle's I/O
// thread. Called once by the transport when its read loop starts.
func (h *Handle) WithIOThread(ctx context.Context) context.Context {
	return context.WithValue(ctx, ioThreadKey{}, h.ioToken)
}

// Close initiates a non-blocking close and returns the handle itself.
func (h *Handle) Close() api.Channel {
	h.closeAndReport(nil)
	return h
}

// CloseWithListener is Close, plus an async completion callback.
func (h *Handle) CloseWithListener(listener api.FutureListener) api.Channel {
	h.closeAndReport(listener)
	return h
}

func (h *Handle) closeAndReport(listener api.FutureListener) {
	var err error
	if h.active.CompareAndSwap(true, false) {
		Detach(h.conn)
		// Close the conn before shutting the outbound writer down: a
		// writer goroutine blocked inside net.Conn.Write (e.g. on a full
		// socket buffer) unblocks with an error the moment the conn
		// closes, instead of Shutdown's wg.Wait() stalling on it.
		err = h.conn.Close()
		h.outbound.Shutdown()
	}
	if listener != nil {
		go listener(h, err == nil)
	}
}

// Write enqueues msg onto the outbound write queue and returns the handle
// itself immediately; it never blocks on net.Conn.Write. Backpressure is
// surfaced via IsWritable, not by blocking the caller: once the queue
// crosses its high watermark, IsWritable reports false until the single
// writer goroutine drains it back below the low watermark. A write error,
// including outright queue-full rejection, is never returned directly per
// the fluent Channel contract; it is only observable through a supplied
// listener.
func (h *Handle) Write(msg []byte) api.Channel {
	h.writeAndReport(msg, nil)
	return h
}

// WriteWithListener is Write, plus an async completion callback.
func (h *Handle) WriteWithListener(msg []byte, listener api.FutureListener) api.Channel {
	h.writeAndReport(msg, listener)
	return h
}

func (h *Handle) writeAndReport(msg []byte, listener api.FutureListener) {
	if !h.IsActive() {
		if listener != nil {
			go listener(h, false)
		}
		return
	}
	item := &writeItem{h: h, msg: msg, listener: listener}
	outcome := h.outbound.Dispatch(item)
	h.updateWatermark()
	if outcome == api.Rejected && listener != nil {
		go listener(h, false)
	}
}

// String delegates to the underlying stream for diagnostics.
func (h *Handle) String() string {
	return fmt.Sprintf("%s[%s->%s]", h.ID(), h.conn.LocalAddr(), h.conn.RemoteAddr())
}

var _ api.Channel = (*Handle)(nil)
