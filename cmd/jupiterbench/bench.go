// File: cmd/jupiterbench/bench.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// bench drives the client dispatch core end to end: it opens a
// reconnecting watchdog-managed connection, submits a configurable
// number of requests through the Executor façade, and reports total
// elapsed time and throughput. Runtime knobs are seeded the way
// BenchmarkServer.java seeds SystemPropertyUtil before starting the
// acceptor, via config.Load()'s environment overlay.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jupiter-go/jupiter/api"
	"github.com/jupiter-go/jupiter/channel"
	"github.com/jupiter-go/jupiter/config"
	"github.com/jupiter-go/jupiter/dispatch"
	"github.com/jupiter-go/jupiter/metrics"
	"github.com/jupiter-go/jupiter/registry"
	"github.com/jupiter-go/jupiter/serialization"
	"github.com/jupiter-go/jupiter/task"
	"github.com/jupiter-go/jupiter/transport"
)

var (
	benchAddr     string
	benchRequests int
	benchWorkers  int
	benchBufSize  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Submit requests against a running echo endpoint and report throughput",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBench(cmd.Context(), benchAddr, benchRequests, benchWorkers, benchBufSize)
	},
}

func init() {
	benchCmd.Flags().StringVar(&benchAddr, "addr", "127.0.0.1:18099", "endpoint to dial")
	benchCmd.Flags().IntVar(&benchRequests, "requests", 10000, "number of requests to submit")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 0, "dispatcher worker count (0 = config default)")
	benchCmd.Flags().IntVar(&benchBufSize, "bufsize", 1024, "ring buffer capacity")
}

// bridgingHandler implements transport.ResponseHandler: every decoded
// envelope becomes a task.ResponseTask submitted through the Executor
// façade, keeping deserialization and the registry hand-off off the I/O
// goroutine, per the data-flow the spec names.
type bridgingHandler struct {
	exec       *dispatch.Executor
	registry   *registry.InvokeRegistry
	serializer api.Serializer
}

func (h *bridgingHandler) HandleResponse(ctx context.Context, ch *channel.Handle, env api.ResponseEnvelope) {
	t := task.Acquire(ch, env, h.serializer, h.registry, func() any { return new(map[string]int) })
	if err := h.exec.Execute(t); err != nil {
		logrus.WithError(err).Warn("jupiterbench: dispatch rejected response task")
	}
}

func envelopeFor(id api.RequestID, payload []byte) api.ResponseEnvelope {
	return api.ResponseEnvelope{RequestID: id, Status: api.StatusOK, Bytes: payload}
}

// logrusWriter adapts logrus to the io.Writer the metrics reporter wants,
// so CSV lines flow through the same structured-logging sink as
// everything else in the CLI.
type logrusWriter struct{}

func (logrusWriter) Write(p []byte) (int, error) {
	logrus.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func runBench(ctx context.Context, addr string, requests, workers, bufSize int) error {
	cfg := config.Load()
	if workers <= 0 {
		workers = cfg.NumWorkers()
	}

	exec, err := buildExecutor(workers, bufSize)
	if err != nil {
		return err
	}
	defer exec.Shutdown()

	reporter := metrics.NewReporter(cfg, exec, logrusWriter{})
	reporter.Start(ctx)
	defer reporter.Stop()

	ser := serialization.NewJSONSerializer()
	reg := registry.NewInvokeRegistry()

	handler := &bridgingHandler{exec: exec, registry: reg, serializer: ser}
	bootstrap := transport.NewBootstrap(nil)
	watchdog := transport.NewWatchdog(addr, bootstrap, handler, 30*time.Second)
	watchdog.SetReconnect(true)

	if err := watchdog.Connect(ctx, false); err != nil {
		return fmt.Errorf("bench: connect failed: %w", err)
	}

	start := time.Now()
	for i := 0; i < requests; i++ {
		id, fut := reg.Register(5 * time.Second)
		payload, _ := ser.Marshal(map[string]int{"i": i})
		env := envelopeFor(id, payload)
		frame, err := transport.EncodeFrame(env)
		if err != nil {
			return err
		}

		group := watchdog.Group().Snapshot()
		if len(group) == 0 {
			return fmt.Errorf("bench: no live channel to write on")
		}
		group[0].Write(frame)

		if _, err := fut.Wait(ctx); err != nil {
			logrus.WithError(err).Debug("bench: request failed")
		}
	}
	elapsed := time.Since(start)

	logrus.WithFields(logrus.Fields{
		"requests": requests,
		"elapsed":  elapsed,
		"rps":      float64(requests) / elapsed.Seconds(),
	}).Info("jupiterbench: run complete")

	watchdog.Close()
	return nil
}

func buildExecutor(workers, bufSize int) (*dispatch.Executor, error) {
	ring, err := dispatch.NewRingDispatcher(dispatch.Config{
		NumWorkers:        workers,
		ThreadFactoryName: "jupiterbench",
		BufSize:           bufSize,
		WaitStrategy:      dispatch.Blocking,
		NUMANode:          -1,
	})
	if err != nil {
		return nil, err
	}
	reserve := dispatch.NewReservePool(workers, nil)
	return dispatch.NewExecutor(ring, reserve), nil
}
