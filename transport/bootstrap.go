// File: transport/bootstrap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bootstrap is the C8 component: configures socket options and installs
// the pipeline factory. It records whether a native socket path is
// available but always dials through the portable net.Dialer. Grounded on the teacher's internal/transport package, which
// already splits "native" (raw-syscall, platform-specific,
// internal/transport/transport_linux.go et al) from "portable"
// (net.Conn-based) socket handling behind a single factory function
// (newTransportInternal / RuntimeTransportSelector). Bootstrap mutation
// is serialized with an internal lock so concurrent Connect calls cannot
// race on option/handler installation; the connect future is awaited
// outside the lock.

package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jupiter-go/jupiter/api"
)

// connectTimeout mirrors the spec's CONNECT_TIMEOUT_MILLIS=3000 default.
const connectTimeout = 3000 * time.Millisecond

// PipelineFactory builds the handler chain for a freshly connected
// stream. Installed once per Bootstrap; invoked by the watchdog on every
// (re)connect.
type PipelineFactory func(conn net.Conn) *Pipeline

// Bootstrap applies connector-level socket options and owns the pipeline
// factory used for every connect attempt.
type Bootstrap struct {
	mu              sync.Mutex
	preferNative    bool
	pipelineFactory PipelineFactory
}

// NewBootstrap returns a Bootstrap that records whether the platform
// build reports a native socket path (see sockopts_*.go). Dial does not
// consult that flag: every connect goes through net.Dialer, which on
// Linux runs on the Go runtime's epoll-based netpoller.
func NewBootstrap(factory PipelineFactory) *Bootstrap {
	return &Bootstrap{
		preferNative:    nativeAvailable(),
		pipelineFactory: factory,
	}
}

// SetPipelineFactory replaces the pipeline factory under the bootstrap
// mutation lock.
func (b *Bootstrap) SetPipelineFactory(factory PipelineFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipelineFactory = factory
}

// Dial performs a single blocking connect attempt, applying SO_REUSEADDR
// and the 3-second connect timeout, and builds the pipeline for the
// resulting stream. The watchdog (see watchdog.go) is responsible for
// the synchronous-vs-asynchronous Connect contract: it calls Dial
// directly on the caller's goroutine for the synchronous path, or from a
// background goroutine for the asynchronous path, surfacing completion
// via the channel group either way.
func (b *Bootstrap) Dial(ctx context.Context, addr string) (net.Conn, *Pipeline, error) {
	b.mu.Lock()
	dialer := net.Dialer{
		Timeout: connectTimeout,
		Control: applySocketOptions,
	}
	factory := b.pipelineFactory
	b.mu.Unlock() // bootstrap mutation is serialized; the dial itself runs unlocked

	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	conn, err := dialer.DialContext(dctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", api.ErrConnectFailed, err)
	}
	return conn, factory(conn), nil
}
