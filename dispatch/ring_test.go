package dispatch

import (
	"testing"

	"github.com/jupiter-go/jupiter/api"
)

func TestRoundUpPow2(t *testing.T) {
	cases := map[int]int{
		1:   1,
		2:   2,
		3:   4,
		4:   4,
		5:   8,
		100: 128,
		128: 128,
		129: 256,
	}
	for in, want := range cases {
		if got := roundUpPow2(in); got != want {
			t.Errorf("roundUpPow2(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRingPublishConsumeFIFO(t *testing.T) {
	r := newRing(4)
	items := []api.Item{fakeItem(1), fakeItem(2), fakeItem(3)}
	for _, it := range items {
		if !r.tryPublish(it) {
			t.Fatalf("tryPublish failed unexpectedly")
		}
	}
	for _, want := range items {
		got, ok := r.tryConsume()
		if !ok {
			t.Fatalf("tryConsume reported empty unexpectedly")
		}
		if got != want {
			t.Errorf("tryConsume FIFO violated: got %v want %v", got, want)
		}
	}
	if _, ok := r.tryConsume(); ok {
		t.Errorf("tryConsume on empty ring should report false")
	}
}

func TestRingFullRejectsWithoutBlocking(t *testing.T) {
	r := newRing(2)
	if !r.tryPublish(fakeItem(1)) {
		t.Fatal("first publish should succeed")
	}
	if !r.tryPublish(fakeItem(2)) {
		t.Fatal("second publish should succeed")
	}
	if r.tryPublish(fakeItem(3)) {
		t.Fatal("third publish should be rejected: ring is full")
	}
}

func TestRingConsumeIsWorkPoolNotBroadcast(t *testing.T) {
	r := newRing(8)
	for i := 0; i < 4; i++ {
		r.tryPublish(fakeItem(i))
	}
	seen := map[api.Item]int{}
	done := make(chan struct{})
	results := make(chan api.Item, 4)
	for g := 0; g < 4; g++ {
		go func() {
			if it, ok := r.tryConsume(); ok {
				results <- it
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	close(results)
	for it := range results {
		seen[it]++
	}
	if len(seen) != 4 {
		t.Errorf("expected 4 distinct items consumed exactly once each, got %v", seen)
	}
	for it, n := range seen {
		if n != 1 {
			t.Errorf("item %v consumed %d times, want exactly 1 (work-pool semantics)", it, n)
		}
	}
}

type fakeItem int

func (fakeItem) Run() error { return nil }
