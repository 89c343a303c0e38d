// File: dispatch/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingDispatcher is the bounded MPMC work queue (C2): a fixed-capacity ring
// of work items consumed by a pool of worker goroutines under work-pool
// semantics (each published item reaches exactly one worker). Mirrors
// org.jupiter.common.concurrent.disruptor.TaskDispatcher's construction
// rules (bufSize rounding, numWorkers clamping, wait-strategy selection)
// while replacing the Disruptor/RingBuffer machinery with the CAS ring in
// ring.go, which already gives the same single-producer/multi-consumer
// claim semantics Disruptor's WorkerPool provides.

package dispatch

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jupiter-go/jupiter/affinity"
	"github.com/jupiter-go/jupiter/api"
	"github.com/sirupsen/logrus"
)

// MaxNumWorkers bounds the worker pool regardless of the requested size,
// mirroring the Java MAX_NUM_WORKERS constant referenced by the spec.
const MaxNumWorkers = 32

// ExceptionHandler is invoked for every error that escapes Item.Run. The
// default swallows and logs; production code is expected to wrap it with a
// metrics-aware handler (spec §9: "this is a policy decision, not a
// correctness one").
type ExceptionHandler func(item api.Item, err error)

// Config configures a RingDispatcher. See spec §6 "Dispatcher configuration".
type Config struct {
	NumWorkers        int
	ThreadFactoryName string
	BufSize           int
	NumReserveWorkers int
	WaitStrategy      WaitPolicy
	NUMANode          int // -1 = no affinity pinning
	OnException       ExceptionHandler
}

// RingDispatcher is the C2 component: a bounded ring of work items drained
// by a fixed worker pool under the selected WaitPolicy.
type RingDispatcher struct {
	ring     *ring
	cond     *parkCond
	workers  int
	name     string
	onExc    ExceptionHandler
	waitKind WaitPolicy

	accepted atomic.Uint64
	rejected atomic.Uint64

	stopCh   chan struct{}
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// NewRingDispatcher validates cfg and starts the worker pool. Construction
// fails only on an invalid bufSize; every other out-of-range input is
// silently clamped per the spec's documented tie-breaks.
func NewRingDispatcher(cfg Config) (*RingDispatcher, error) {
	if cfg.BufSize <= 0 {
		return nil, fmt.Errorf("%w: bufSize must be larger than 0", api.ErrInvalidArgument)
	}
	bufSize := roundUpPow2(cfg.BufSize)

	numWorkers := cfg.NumWorkers
	if numWorkers < 0 {
		numWorkers = -numWorkers
	}
	if numWorkers == 0 {
		// zero is treated as one; Math.abs(0) == 0 is preserved upstream of
		// this clamp, so the silent-acceptance behavior noted in spec §9 is
		// intentional and documented, not a bug we are fixing.
		numWorkers = 1
	}
	if numWorkers > MaxNumWorkers {
		numWorkers = MaxNumWorkers
	}

	if cfg.WaitStrategy == BusySpin && numWorkers > runtime.NumCPU() {
		logrus.WithFields(logrus.Fields{
			"workers": numWorkers,
			"cores":   runtime.NumCPU(),
		}).Warn("dispatch: BusySpin requested with more workers than physical cores")
	}

	onExc := cfg.OnException
	if onExc == nil {
		onExc = defaultExceptionHandler
	}

	d := &RingDispatcher{
		ring:     newRing(uint64(bufSize)),
		cond:     newParkCond(),
		workers:  numWorkers,
		name:     cfg.ThreadFactoryName,
		onExc:    onExc,
		waitKind: cfg.WaitStrategy,
		stopCh:   make(chan struct{}),
	}

	for i := 0; i < numWorkers; i++ {
		d.wg.Add(1)
		go d.runWorker(i, cfg.NUMANode)
	}

	return d, nil
}

// Dispatch implements api.Dispatcher. It never blocks and never allocates
// on the accept path.
func (d *RingDispatcher) Dispatch(item api.Item) api.Outcome {
	if d.closed.Load() {
		d.rejected.Add(1)
		return api.Rejected
	}
	if !d.ring.tryPublish(item) {
		d.rejected.Add(1)
		return api.Rejected
	}
	d.accepted.Add(1)
	if d.waitKind == LiteBlocking {
		if d.cond.hasParked() {
			d.cond.signal()
		}
	} else {
		d.cond.signal()
	}
	return api.Accepted
}

// Shutdown stops accepting new work, lets already-claimed items run to
// completion, and joins every worker goroutine. Idempotent.
func (d *RingDispatcher) Shutdown() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	close(d.stopCh)
	d.cond.closeAndWake()
	d.wg.Wait()
}

// Metrics returns a point-in-time snapshot for the metrics reporter.
func (d *RingDispatcher) Metrics() api.DispatcherMetrics {
	return api.DispatcherMetrics{
		RingCapacity: d.ring.capacity(),
		RingLen:      d.ring.len(),
		NumWorkers:   d.workers,
		Accepted:     d.accepted.Load(),
		Rejected:     d.rejected.Load(),
	}
}

func (d *RingDispatcher) runWorker(id, numaNode int) {
	defer d.wg.Done()
	if numaNode >= 0 {
		affinity.PinCurrentGoroutine(numaNode, id)
		defer affinity.UnpinCurrentGoroutine()
	}

	w := newWaiter(d.waitKind, d.cond)
	for {
		// The generation is snapshotted before tryConsume, not after, so a
		// publish's signal landing anywhere between this read and the park
		// call below is guaranteed to be observed: parkUntilSignalOrStop
		// checks the generation under the same lock signal() advances it
		// under, so a missed-in-between signal can never leave this worker
		// parked while an accepted item sits unconsumed in the ring.
		seenGen := d.cond.generation()
		item, ok := d.ring.tryConsume()
		if ok {
			w.reset()
			d.runItem(item)
			continue
		}

		// The ring is confirmed empty: only now is it safe to honor
		// shutdown. Checking stopCh after waking (rather than exiting
		// straight away) would drop an item published concurrently with
		// Shutdown's broadcast; looping back to tryConsume first instead
		// drains the ring fully before any worker exits.
		select {
		case <-d.stopCh:
			// An item published between the empty tryConsume above and
			// this check is still in the ring: take it before exiting.
			if item, ok := d.ring.tryConsume(); ok {
				d.runItem(item)
				continue
			}
			return
		default:
		}
		w.wait(d.stopCh, seenGen)
	}
}

func (d *RingDispatcher) runItem(item api.Item) {
	defer func() {
		if r := recover(); r != nil {
			d.onExc(item, fmt.Errorf("panic in item.Run: %v", r))
		}
	}()
	if err := item.Run(); err != nil {
		d.onExc(item, err)
	}
}

func defaultExceptionHandler(item api.Item, err error) {
	logrus.WithError(err).WithField("item", fmt.Sprintf("%T", item)).
		Warn("dispatch: item.Run failed, swallowing per exception policy")
}
