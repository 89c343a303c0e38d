// File: api/channel.go
// Author: momentics <momentics@gmail.com>
//
// Channel is the logical, transport-agnostic view of one live bidirectional
// byte stream (C5 ChannelHandle). Equality and identity are delegated to the
// underlying stream: two Channels are the same channel iff they wrap the
// same stream.

package api

import "context"

// FutureListener is notified once an asynchronous close or write completes.
type FutureListener func(ch Channel, success bool)

// Channel abstracts one attached, identity-preserving connection handle.
type Channel interface {
	// ID returns a short identifier, unique within the process for the
	// channel's life. It is not globally unique.
	ID() string

	// IsActive reflects the underlying stream at call time; never cached.
	IsActive() bool

	// IsWritable reflects the transport's write-buffer watermark at call
	// time; never cached.
	IsWritable() bool

	// IsIOThread reports whether ctx carries the token minted by this
	// channel's own I/O goroutine, i.e. whether the caller is running on
	// the goroutine that owns this channel's reads.
	IsIOThread(ctx context.Context) bool

	// Close initiates a non-blocking close and returns the channel itself.
	Close() Channel

	// CloseWithListener is as Close but invokes listener on completion.
	CloseWithListener(listener FutureListener) Channel

	// Write enqueues a write-and-flush of msg. Backpressure is surfaced via
	// IsWritable, never by blocking the caller.
	Write(msg []byte) Channel

	// WriteWithListener is as Write but invokes listener on completion.
	WriteWithListener(msg []byte, listener FutureListener) Channel

	// String renders the channel for diagnostics, delegating to the
	// underlying stream.
	String() string
}
