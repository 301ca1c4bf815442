package node

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitResult[T any](t *testing.T, a *Async[T]) Result[T] {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r, ok := a.Poll(); ok {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for async result")
	return Result[T]{}
}

func TestAsyncSingleFlight(t *testing.T) {
	var a Async[int]
	release := make(chan struct{})

	ok := a.Start(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 42, nil
	})
	if !ok {
		t.Fatal("first start should succeed")
	}
	if a.Start(context.Background(), func(ctx context.Context) (int, error) { return 0, nil }) {
		t.Error("second start should be refused while pending")
	}
	if _, ok := a.Poll(); ok {
		t.Error("poll should not return before completion")
	}

	close(release)
	r := waitResult(t, &a)
	if r.Value != 42 || r.Err != nil {
		t.Errorf("unexpected result %+v", r)
	}
	if _, ok := a.Poll(); ok {
		t.Error("result should be delivered once")
	}
	if a.Pending() {
		t.Error("should not be pending after completion")
	}
}

func TestAsyncCloseCancels(t *testing.T) {
	var a Async[int]
	cancelled := make(chan struct{})

	a.Start(context.Background(), func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})
	a.Close()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not cancel the call")
	}
	time.Sleep(10 * time.Millisecond)
	if _, ok := a.Poll(); ok {
		t.Error("result should be dropped after close")
	}
	if a.Start(context.Background(), func(ctx context.Context) (int, error) { return 1, nil }) {
		t.Error("start after close should be refused")
	}
}

func TestAsyncIgnoresParentCancel(t *testing.T) {
	var a Async[string]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a.Start(ctx, func(callCtx context.Context) (string, error) {
		if callCtx.Err() != nil {
			return "", errors.New("call context cancelled")
		}
		return "ok", nil
	})
	r := waitResult(t, &a)
	if r.Err != nil || r.Value != "ok" {
		t.Errorf("unexpected result %+v", r)
	}
}
