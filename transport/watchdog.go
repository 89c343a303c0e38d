// File: transport/watchdog.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Watchdog is the C7 component: a stateful pipeline entry that owns the
// reconnect policy for one (endpoint, channel-group) pair. Grounded on
// the teacher's control package for the sharable, idempotent-singleton
// shape of long-lived coordinators, and on reactor/reactor.go's
// event-driven state-transition style, redesigned around
// api.EndpointState instead of a reactor event loop.

package transport

import (
	"context"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jupiter-go/jupiter/api"
	"github.com/jupiter-go/jupiter/channel"
	"github.com/sirupsen/logrus"
)

// Backoff bounds, per spec §9's open question: "implementers should
// choose bounded exponential backoff (e.g., 1s -> 30s cap)."
const (
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// Watchdog owns one logical endpoint's connection lifecycle: connect,
// reconnect-with-backoff, pipeline rebuild, and channel-group membership.
// It is sharable and idempotent across attachment to multiple streams
// over time, per spec §4.7.
type Watchdog struct {
	addr      string
	bootstrap *Bootstrap
	handler   ResponseHandler
	idleTimeout time.Duration
	group     *channel.Group

	state atomic.Int32 // api.EndpointState

	mu       sync.Mutex
	reconnectEnabled atomic.Bool
	attempt  int
	current  *Pipeline
	cancelRun context.CancelFunc
}

// NewWatchdog constructs a watchdog for addr, initially idle. Reconnect
// is disabled by default; call SetReconnect(true) to enable it before or
// after Connect.
func NewWatchdog(addr string, bootstrap *Bootstrap, handler ResponseHandler, idleTimeout time.Duration) *Watchdog {
	w := &Watchdog{
		addr:        addr,
		bootstrap:   bootstrap,
		handler:     handler,
		idleTimeout: idleTimeout,
		group:       channel.NewGroup(),
	}
	w.state.Store(int32(api.EndpointIdle))
	bootstrap.SetPipelineFactory(w.pipelineFactory)
	return w
}

// pipelineFactory builds the per-connection pipeline using this
// watchdog's handler and idle timeout; installed on the bootstrap at
// construction so every (re)connect rebuilds the full handler chain
// [watchdog, idleChecker, idleTrigger, decoder, encoder, handler].
func (w *Watchdog) pipelineFactory(conn net.Conn) *Pipeline {
	return NewPipeline(conn, w.handler, w.idleTimeout, func() {
		logrus.WithField("addr", w.addr).Debug("transport: connection idle, closing")
		conn.Close()
	})
}

// State returns the current lifecycle state.
func (w *Watchdog) State() api.EndpointState {
	return api.EndpointState(w.state.Load())
}

// Group exposes the channel group this watchdog maintains.
func (w *Watchdog) Group() *channel.Group {
	return w.group
}

// SetReconnect toggles the reconnect policy. Idempotent and observable
// immediately, per spec §8 "round-trip / idempotence."
func (w *Watchdog) SetReconnect(enabled bool) {
	w.reconnectEnabled.Store(enabled)
}

// Connect transitions Idle -> Connecting, dials via the bootstrap, and on
// success transitions Connecting -> Connected and adds the resulting
// handle to the channel group. The synchronous path blocks the caller
// until the attempt settles; the asynchronous path returns immediately
// and completion is observable via Group().
func (w *Watchdog) Connect(ctx context.Context, async bool) error {
	w.state.Store(int32(api.EndpointConnecting))
	if !async {
		return w.dialOnce(ctx)
	}
	go func() {
		if err := w.dialOnce(ctx); err != nil {
			logrus.WithError(err).WithField("addr", w.addr).Warn("transport: async connect failed")
		}
	}()
	return nil
}

func (w *Watchdog) dialOnce(ctx context.Context) error {
	conn, pipe, err := w.bootstrap.Dial(ctx, w.addr)
	if err != nil {
		w.state.Store(int32(api.EndpointClosed))
		return err
	}
	w.onConnected(ctx, conn, pipe)
	return nil
}

func (w *Watchdog) onConnected(ctx context.Context, conn net.Conn, pipe *Pipeline) {
	w.mu.Lock()
	w.attempt = 0
	w.current = pipe
	runCtx, cancel := context.WithCancel(ctx)
	w.cancelRun = cancel
	w.mu.Unlock()

	w.state.Store(int32(api.EndpointConnected))
	w.group.Add(pipe.Handle())

	go func() {
		err := pipe.RunReadLoop(runCtx)
		w.onDisconnected(ctx, conn, pipe, err)
	}()
}

func (w *Watchdog) onDisconnected(ctx context.Context, conn net.Conn, pipe *Pipeline, cause error) {
	w.group.Remove(pipe.Handle())
	channel.Detach(conn)

	if !w.reconnectEnabled.Load() {
		w.state.Store(int32(api.EndpointClosed))
		return
	}

	w.state.Store(int32(api.EndpointReconnecting))
	w.mu.Lock()
	w.attempt++
	attempt := w.attempt
	w.mu.Unlock()

	w.scheduleReconnect(ctx, attempt, cause)
}

// scheduleReconnect arms a single backoff timer for the given attempt
// number; on failure it re-enters itself with attempt+1, continuing the
// backoff sequence without reusing a stale connection/pipeline.
func (w *Watchdog) scheduleReconnect(ctx context.Context, attempt int, cause error) {
	delay := backoffDelay(attempt)
	logrus.WithFields(logrus.Fields{
		"addr":  w.addr,
		"delay": delay,
		"cause": cause,
	}).Info("transport: scheduling reconnect")

	time.AfterFunc(delay, func() {
		if !w.reconnectEnabled.Load() {
			return
		}
		w.state.Store(int32(api.EndpointConnecting))
		if err := w.dialOnce(ctx); err != nil {
			logrus.WithError(err).WithField("addr", w.addr).Warn("transport: reconnect attempt failed")
			w.mu.Lock()
			w.attempt++
			next := w.attempt
			w.mu.Unlock()
			w.scheduleReconnect(ctx, next, err)
		}
	})
}

// Close shuts the watchdog down unconditionally: any state transitions
// to Closed, the read loop is cancelled, and no further reconnect
// attempts are scheduled.
func (w *Watchdog) Close() {
	w.reconnectEnabled.Store(false)
	w.state.Store(int32(api.EndpointClosed))
	w.mu.Lock()
	cancel := w.cancelRun
	current := w.current
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if current != nil {
		current.Handle().Close()
	}
}

// backoffDelay computes bounded exponential backoff: base * 2^(attempt-1),
// capped at backoffCap.
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(backoffBase) * math.Pow(2, float64(attempt-1))
	if d > float64(backoffCap) {
		return backoffCap
	}
	return time.Duration(d)
}
