package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/jupiter-go/jupiter/api"
	"github.com/jupiter-go/jupiter/channel"
)

type noopHandler struct{}

func (noopHandler) HandleResponse(ctx context.Context, ch *channel.Handle, env api.ResponseEnvelope) {}

func listenAndAccept(t *testing.T) (addr string, accepted chan net.Conn, closeFn func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	accepted = make(chan net.Conn, 16)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- c
		}
	}()
	return ln.Addr().String(), accepted, func() { ln.Close() }
}

func TestWatchdogConnectTransitionsToConnected(t *testing.T) {
	addr, accepted, closeLn := listenAndAccept(t)
	defer closeLn()

	w := NewWatchdog(addr, NewBootstrap(nil), noopHandler{}, time.Minute)
	defer w.Close()

	if err := w.Connect(context.Background(), false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := w.State(); got != api.EndpointConnected {
		t.Errorf("State() = %v, want EndpointConnected", got)
	}
	if n := w.Group().Len(); n != 1 {
		t.Errorf("Group().Len() = %d, want 1", n)
	}

	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(time.Second):
		t.Fatal("server side never observed the accepted connection")
	}
}

func TestWatchdogAsyncConnectCompletesObservableViaGroup(t *testing.T) {
	addr, _, closeLn := listenAndAccept(t)
	defer closeLn()

	w := NewWatchdog(addr, NewBootstrap(nil), noopHandler{}, time.Minute)
	defer w.Close()

	if err := w.Connect(context.Background(), true); err != nil {
		t.Fatalf("Connect(async): %v", err)
	}

	deadline := time.After(time.Second)
	for w.Group().Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("async connect never became observable via Group()")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := w.State(); got != api.EndpointConnected {
		t.Errorf("State() = %v, want EndpointConnected", got)
	}
}

func TestWatchdogDisconnectWithoutReconnectGoesToClosed(t *testing.T) {
	addr, accepted, closeLn := listenAndAccept(t)
	defer closeLn()

	w := NewWatchdog(addr, NewBootstrap(nil), noopHandler{}, time.Minute)
	defer w.Close()

	if err := w.Connect(context.Background(), false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	serverSide := <-accepted
	serverSide.Close() // force the client's read loop to observe EOF

	deadline := time.After(time.Second)
	for w.State() != api.EndpointClosed {
		select {
		case <-deadline:
			t.Fatalf("State() = %v, want it to settle to EndpointClosed", w.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if n := w.Group().Len(); n != 0 {
		t.Errorf("Group().Len() = %d, want 0 once the handle is detached", n)
	}
}

func TestWatchdogReconnectsWithBackoffWhenEnabled(t *testing.T) {
	addr, accepted, closeLn := listenAndAccept(t)
	defer closeLn()

	w := NewWatchdog(addr, NewBootstrap(nil), noopHandler{}, time.Minute)
	w.SetReconnect(true)
	defer w.Close()

	if err := w.Connect(context.Background(), false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	serverSide := <-accepted
	serverSide.Close()

	// Wait for the reconnect to reach the server first: until the client
	// observes EOF, State() and Group() still report the original
	// connection.
	select {
	case c := <-accepted:
		defer c.Close()
	case <-time.After(backoffBase + time.Second):
		t.Fatal("server side never observed the reconnect attempt")
	}

	deadline := time.After(5 * time.Second)
	for w.State() != api.EndpointConnected || w.Group().Len() == 0 {
		if w.State() == api.EndpointClosed {
			t.Fatalf("watchdog settled to Closed instead of reconnecting")
		}
		select {
		case <-deadline:
			t.Fatalf("watchdog never reconnected within the deadline; last state %v", w.State())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatchdogSetReconnectIsIdempotent(t *testing.T) {
	addr, _, closeLn := listenAndAccept(t)
	defer closeLn()

	w := NewWatchdog(addr, NewBootstrap(nil), noopHandler{}, time.Minute)
	defer w.Close()

	w.SetReconnect(true)
	w.SetReconnect(true)
	w.SetReconnect(false)
	w.SetReconnect(false) // no panic, no observable difference from a single call
}

func TestWatchdogCloseCancelsReadLoopAndSetsClosed(t *testing.T) {
	addr, accepted, closeLn := listenAndAccept(t)
	defer closeLn()

	w := NewWatchdog(addr, NewBootstrap(nil), noopHandler{}, time.Minute)
	w.SetReconnect(true)

	if err := w.Connect(context.Background(), false); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	<-accepted

	w.Close()
	if got := w.State(); got != api.EndpointClosed {
		t.Errorf("State() = %v, want EndpointClosed after Close", got)
	}

	// Close must disable reconnect even though it was enabled: waiting past
	// a full backoff period must not observe a reconnect attempt.
	time.Sleep(backoffBase + 100*time.Millisecond)
	if got := w.State(); got != api.EndpointClosed {
		t.Errorf("State() = %v, want it to remain EndpointClosed after Close", got)
	}
}
