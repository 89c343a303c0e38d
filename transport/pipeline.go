// File: transport/pipeline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pipeline is the per-connection handler chain the spec names:
// [watchdog, idleChecker, idleTrigger, decoder, encoder, handler]. All
// handlers except the decoder are sharable singletons; the decoder is
// per-connection because it holds per-stream framing state (a partial
// read buffer). Grounded on the teacher's layering of a connection
// object that owns a read loop plus pluggable encode/decode, adapted
// from WebSocket framing to the RPC frame format in frame.go.

package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	"github.com/jupiter-go/jupiter/api"
	"github.com/jupiter-go/jupiter/channel"
	"github.com/sirupsen/logrus"
)

// ResponseHandler is the sharable singleton the spec calls "handler": it
// receives each fully decoded ResponseEnvelope on the I/O thread and is
// responsible for the non-blocking hand-off to the Executor façade. The
// watchdog only passes the handler through to each pipeline; the concrete
// implementation (cmd/jupiterbench's bridgingHandler, which submits a
// task.ResponseTask) lives outside this package, and this interface keeps
// transport decoupled from it.
type ResponseHandler interface {
	HandleResponse(ctx context.Context, ch *channel.Handle, env api.ResponseEnvelope)
}

// Pipeline owns the per-connection decoder state and the read loop that
// drives it; encoder/handler/idle-* are shared across all pipelines for
// one ConnectionWatchdog.
type Pipeline struct {
	handle     *channel.Handle
	handler    ResponseHandler
	idleTimeout time.Duration
	onIdle     func()

	reader *bufio.Reader
}

// NewPipeline constructs the per-connection pipeline for conn, installing
// handler as the sharable response handler and idleTimeout/onIdle as the
// idleChecker+idleTrigger pair (a reader that has seen nothing for
// idleTimeout calls onIdle, mirroring Netty's IdleStateHandler pairing
// used by the spec's pipeline list).
func NewPipeline(conn net.Conn, handler ResponseHandler, idleTimeout time.Duration, onIdle func()) *Pipeline {
	return &Pipeline{
		handle:      channel.Attach(conn),
		handler:     handler,
		idleTimeout: idleTimeout,
		onIdle:      onIdle,
		reader:      bufio.NewReader(conn),
	}
}

// Handle returns the attached channel handle for this pipeline's stream.
func (p *Pipeline) Handle() *channel.Handle {
	return p.handle
}

// RunReadLoop is the decoder + idleChecker/idleTrigger combined: it reads
// framed envelopes until the stream closes or ctx is cancelled, resetting
// the idle timer on every successful read and invoking onIdle when
// idleTimeout elapses with nothing read. The loop stamps the context once,
// before its first read, with this pipeline's I/O-thread token via
// Handle().WithIOThread, and passes that context to every handler call, so
// handler code can answer IsIOThread correctly.
func (p *Pipeline) RunReadLoop(ctx context.Context) error {
	conn := p.handle
	ioCtx := conn.WithIOThread(ctx)

	idleTimer := time.AfterFunc(p.idleTimeout, func() {
		if p.onIdle != nil {
			p.onIdle()
		}
	})
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var lenPrefix [FrameLengthSize]byte
		if _, err := io.ReadFull(p.reader, lenPrefix[:]); err != nil {
			return err
		}
		bodyLen, err := ReadFrameLength(lenPrefix[:])
		if err != nil {
			return err
		}
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(p.reader, body); err != nil {
			return err
		}

		idleTimer.Reset(p.idleTimeout)

		env, err := DecodeFrame(body)
		if err != nil {
			logrus.WithError(err).Warn("transport: dropping malformed frame")
			continue
		}
		p.handler.HandleResponse(ioCtx, conn, env)
	}
}

// WriteEnvelope encodes and writes env on this pipeline's channel,
// implementing the pipeline's "encoder" stage.
func (p *Pipeline) WriteEnvelope(env api.ResponseEnvelope) error {
	frame, err := EncodeFrame(env)
	if err != nil {
		return err
	}
	p.handle.Write(frame)
	return nil
}
