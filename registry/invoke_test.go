package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jupiter-go/jupiter/api"
)

func TestNewRequestIDIsUniqueAndNonEmpty(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	if a == "" || b == "" {
		t.Fatal("NewRequestID must not return an empty RequestID")
	}
	if a == b {
		t.Error("two successive RequestIDs must differ")
	}
}

func TestInvokeRegistryDeliverySettlesFuture(t *testing.T) {
	reg := NewInvokeRegistry()

	id, fut := reg.Register(time.Second)
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after Register", reg.Len())
	}

	got := &map[string]int{"x": 42}
	reg.Deliver(id, &api.ResultWrapper{Value: got})

	select {
	case <-fut.Done():
	case <-time.After(time.Second):
		t.Fatal("future never resolved")
	}

	result, err := fut.Result()
	if err != nil {
		t.Fatalf("Result() err = %v, want nil", err)
	}
	if result.Value.(*map[string]int) != got {
		t.Error("delivered value should be the exact pointer handed to Deliver")
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after delivery", reg.Len())
	}
}

func TestInvokeRegistryDuplicateDeliveryIsDroppedNotPanicked(t *testing.T) {
	reg := NewInvokeRegistry()

	id, fut := reg.Register(time.Second)
	result := &api.ResultWrapper{Value: new(map[string]int)}

	reg.Deliver(id, result)
	<-fut.Done()
	firstResult, _ := fut.Result()

	// a second delivery for the same (now-deleted) id must be a silent
	// no-op, not a panic, and must not alter the already-resolved future.
	reg.Deliver(id, result)
	secondResult, _ := fut.Result()
	if secondResult != firstResult {
		t.Error("a duplicate delivery after resolution must not mutate the future's result")
	}
}

func TestInvokeRegistryTimeoutEvictsAndResolvesWithTimeoutError(t *testing.T) {
	reg := NewInvokeRegistry()

	_, fut := reg.Register(10 * time.Millisecond)

	select {
	case <-fut.Done():
	case <-time.After(time.Second):
		t.Fatal("future never resolved on timeout")
	}
	_, err := fut.Result()
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	ferr, ok := err.(*api.Error)
	if !ok || ferr.Code != api.ErrCodeTimeout {
		t.Errorf("err = %v, want an *api.Error with ErrCodeTimeout", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after eviction", reg.Len())
	}
}

func TestInvokeRegistryCancelResolvesWithContextCanceled(t *testing.T) {
	reg := NewInvokeRegistry()

	id, fut := reg.Register(time.Second)
	reg.Cancel(id)

	<-fut.Done()
	_, err := fut.Result()
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	// cancelling again (or a late delivery) must be a no-op.
	reg.Cancel(id)
}

func TestInvokeFutureWaitRespectsContextCancellation(t *testing.T) {
	reg := NewInvokeRegistry()

	_, fut := reg.Register(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fut.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait on a cancelled context = %v, want context.Canceled", err)
	}
}

func TestInvokeRegistryStatusErrorResolvesWithError(t *testing.T) {
	reg := NewInvokeRegistry()

	id, fut := reg.Register(time.Second)
	wantErr := context.Canceled // any distinguishable sentinel error
	reg.Deliver(id, &api.ResultWrapper{Err: wantErr})

	<-fut.Done()
	result, err := fut.Result()
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if result.Err != err {
		t.Errorf("result.Err = %v, want it to equal the returned err %v", result.Err, err)
	}
}
