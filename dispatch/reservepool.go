// File: dispatch/reservepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ReservePool is the C3 component: an elastic overflow executor used only
// when the RingDispatcher rejects a dispatch. Mirrors a
// java.util.concurrent.ThreadPoolExecutor configured with a
// SynchronousQueue (direct handoff, no internal queueing) and a 60-second
// idle-thread timeout: workers are spawned on demand up to maxWorkers and
// retire after sitting idle.

package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/jupiter-go/jupiter/api"
	"github.com/sirupsen/logrus"
)

// reserveIdleTimeout matches the 60-second keep-alive of the teacher's
// Java ThreadPoolExecutor-based reserve pool.
const reserveIdleTimeout = 60 * time.Second

// rejectionHistoryLimit bounds the in-memory ring of rejected-task reports
// surfaced to the metrics reporter; unbounded growth under sustained
// overload would itself become a leak.
const rejectionHistoryLimit = 256

// ReservePool is an elastic, direct-handoff worker pool sized [0, max].
// A zero-sized pool (max == 0) exists but always reports full, so the
// Executor façade falls straight through to the "ring buffer is full"
// error path described in the dispatcher docs.
type ReservePool struct {
	max     int
	onExc   ExceptionHandler

	mu      sync.Mutex
	active  int
	idleCh  chan api.Item // direct handoff to a parked idle worker

	rejections *queue.Queue
	rejectedN  atomic.Uint64

	stopCh chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// rejectionReport records one reserve-pool rejection for the metrics
// reporter; queue metrics are captured at the moment of rejection since
// they are meaningless after the fact.
type rejectionReport struct {
	At       time.Time
	Active   int
	Max      int
	ItemType string
}

// NewReservePool constructs a reserve pool with the given max worker
// count. max == 0 is valid and yields a pool that always rejects,
// matching "R == 0: the dispatcher has no overflow."
func NewReservePool(max int, onExc ExceptionHandler) *ReservePool {
	if max < 0 {
		max = 0
	}
	if onExc == nil {
		onExc = defaultExceptionHandler
	}
	return &ReservePool{
		max:        max,
		onExc:      onExc,
		idleCh:     make(chan api.Item),
		rejections: queue.New(),
		stopCh:     make(chan struct{}),
	}
}

// Submit attempts a direct handoff to an idle worker, or spawns a new one
// below max, or rejects. It never queues internally, matching
// SynchronousQueue semantics: a caller either gets accepted immediately by
// a waiting/new worker or rejected immediately.
func (p *ReservePool) Submit(item api.Item) api.Outcome {
	if p.closed.Load() {
		p.reject(item)
		return api.Rejected
	}

	select {
	case p.idleCh <- item:
		return api.Accepted
	default:
	}

	p.mu.Lock()
	if p.active < p.max {
		p.active++
		p.mu.Unlock()
		p.wg.Add(1)
		go p.runWorker(item)
		return api.Accepted
	}
	p.mu.Unlock()

	p.reject(item)
	return api.Rejected
}

func (p *ReservePool) reject(item api.Item) {
	p.rejectedN.Add(1)

	p.mu.Lock()
	report := rejectionReport{
		At:       time.Now(),
		Active:   p.active,
		Max:      p.max,
		ItemType: fmt.Sprintf("%T", item),
	}
	// github.com/eapache/queue.Queue has no internal synchronization, so
	// every access to p.rejections — not just p.active — must happen under
	// p.mu: Submit is explicitly designed for concurrent callers, and two
	// concurrent rejections would otherwise race on the queue's head/tail
	// and backing buffer.
	if p.rejections.Length() >= rejectionHistoryLimit {
		p.rejections.Remove()
	}
	p.rejections.Add(report)
	p.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"active": report.Active,
		"max":    report.Max,
		"item":   report.ItemType,
	}).Warn("dispatch: reserve pool saturated, rejecting")
}

// runWorker runs item immediately, then waits up to reserveIdleTimeout for
// further direct-handoff work before retiring.
func (p *ReservePool) runWorker(item api.Item) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	p.runItem(item)

	timer := time.NewTimer(reserveIdleTimeout)
	defer timer.Stop()
	for {
		select {
		case next := <-p.idleCh:
			p.runItem(next)
			timer.Reset(reserveIdleTimeout)
		case <-timer.C:
			return
		case <-p.stopCh:
			return
		}
	}
}

func (p *ReservePool) runItem(item api.Item) {
	defer func() {
		if r := recover(); r != nil {
			p.onExc(item, fmt.Errorf("panic in item.Run: %v", r))
		}
	}()
	if err := item.Run(); err != nil {
		p.onExc(item, err)
	}
}

// Shutdown stops accepting work and waits for in-flight reserve workers to
// retire. Idempotent.
func (p *ReservePool) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
}

// RejectedCount returns the lifetime count of rejected submissions.
func (p *ReservePool) RejectedCount() uint64 {
	return p.rejectedN.Load()
}

// RecentRejections returns a snapshot of the most recent rejection
// reports, oldest first, for the metrics reporter.
func (p *ReservePool) RecentRejections() []rejectionReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.rejections.Length()
	out := make([]rejectionReport, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, p.rejections.Get(i).(rejectionReport))
	}
	return out
}
