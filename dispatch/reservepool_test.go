package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jupiter-go/jupiter/api"
)

type countingItem struct {
	counter *int64
	wg      *sync.WaitGroup
}

func (c *countingItem) Run() error {
	atomic.AddInt64(c.counter, 1)
	c.wg.Done()
	return nil
}

func TestReservePoolDirectHandoffAndSpawn(t *testing.T) {
	p := NewReservePool(2, nil)
	defer p.Shutdown()

	var counter int64
	var wg sync.WaitGroup
	wg.Add(2)

	if outcome := p.Submit(&countingItem{counter: &counter, wg: &wg}); outcome != api.Accepted {
		t.Fatalf("first submit should spawn a worker and be accepted")
	}
	if outcome := p.Submit(&countingItem{counter: &counter, wg: &wg}); outcome != api.Accepted {
		t.Fatalf("second submit should spawn a second worker and be accepted")
	}
	wg.Wait()
	if got := atomic.LoadInt64(&counter); got != 2 {
		t.Errorf("counter = %d, want 2", got)
	}
}

func TestReservePoolRejectsBeyondMax(t *testing.T) {
	p := NewReservePool(1, nil)
	defer p.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	block := &blockingItem{started: started, release: release, done: make(chan struct{})}

	if outcome := p.Submit(block); outcome != api.Accepted {
		t.Fatalf("submitting into an empty reserve pool should be accepted")
	}
	<-started

	var counter int64
	var wg sync.WaitGroup
	wg.Add(1)
	if outcome := p.Submit(&countingItem{counter: &counter, wg: &wg}); outcome != api.Rejected {
		t.Errorf("submit beyond max with the sole worker busy should be Rejected")
	}
	if got := p.RejectedCount(); got != 1 {
		t.Errorf("RejectedCount() = %d, want 1", got)
	}
	close(release)
	<-block.done
	wg.Done() // never ran
}

func TestReservePoolZeroMaxAlwaysRejects(t *testing.T) {
	p := NewReservePool(0, nil)
	defer p.Shutdown()

	var wg sync.WaitGroup
	var counter int64
	wg.Add(1)
	if outcome := p.Submit(&countingItem{counter: &counter, wg: &wg}); outcome != api.Rejected {
		t.Errorf("a zero-sized reserve pool must always reject")
	}
	wg.Done()
}

func TestReservePoolIdleWorkerTakesDirectHandoff(t *testing.T) {
	// reserveIdleTimeout is 60s in production; this test only checks that a
	// worker which has finished its item remains available for direct
	// handoff to a second submission shortly afterward (it has not yet
	// retired), exercising the idleCh path rather than the timeout itself.
	p := NewReservePool(1, nil)
	defer p.Shutdown()

	var counter int64
	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(&countingItem{counter: &counter, wg: &wg})
	wg.Wait()

	time.Sleep(5 * time.Millisecond)

	wg.Add(1)
	if outcome := p.Submit(&countingItem{counter: &counter, wg: &wg}); outcome != api.Accepted {
		t.Errorf("submit to a still-idle worker should be a direct handoff and be Accepted")
	}
	wg.Wait()
	if got := atomic.LoadInt64(&counter); got != 2 {
		t.Errorf("counter = %d, want 2", got)
	}
}

func TestReservePoolConcurrentRejectionsDoNotCorruptHistory(t *testing.T) {
	// max == 0 rejects every submission, so every one of these goroutines
	// hits reject()'s shared rejectionHistoryLimit ring concurrently; run
	// with -race this is exactly the scenario that catches an unguarded
	// access to the underlying eapache/queue.Queue.
	p := NewReservePool(0, nil)
	defer p.Shutdown()

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			var c int64
			var done sync.WaitGroup
			done.Add(1)
			p.Submit(&countingItem{counter: &c, wg: &done})
			done.Done() // never ran
		}()
	}
	wg.Wait()

	if got := p.RejectedCount(); got != n {
		t.Errorf("RejectedCount() = %d, want %d", got, n)
	}
	if got := len(p.RecentRejections()); got > rejectionHistoryLimit || got == 0 {
		t.Errorf("RecentRejections() length = %d, want (0, %d]", got, rejectionHistoryLimit)
	}
}

func TestReservePoolShutdownIsIdempotentAndRejectsAfter(t *testing.T) {
	p := NewReservePool(2, nil)
	p.Shutdown()
	p.Shutdown()

	var wg sync.WaitGroup
	var counter int64
	wg.Add(1)
	if outcome := p.Submit(&countingItem{counter: &counter, wg: &wg}); outcome != api.Rejected {
		t.Errorf("Submit after Shutdown = %v, want Rejected", outcome)
	}
	wg.Done()
}
