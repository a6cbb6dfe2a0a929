package retryutil

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAsyncRetrySucceedsAfterFailures(t *testing.T) {
	var calls atomic.Int32
	done := AsyncRetry(context.Background(), nil, "set_commands", Policy{Delay: 5 * time.Millisecond, Attempts: 3}, func(ctx context.Context) error {
		if calls.Add(1) < 2 {
			return errors.New("telegram 502")
		}
		return nil
	})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("AsyncRetry() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("AsyncRetry() did not finish")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestAsyncRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	want := errors.New("unauthorized")
	done := AsyncRetry(context.Background(), nil, "set_commands", Policy{Delay: time.Millisecond, Attempts: 2}, func(ctx context.Context) error {
		calls.Add(1)
		return want
	})
	if err := <-done; !errors.Is(err, want) {
		t.Fatalf("AsyncRetry() error = %v, want %v", err, want)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestAsyncRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := AsyncRetry(ctx, nil, "set_commands", Policy{Delay: time.Hour}, func(ctx context.Context) error {
		t.Errorf("fn must not run after cancel")
		return nil
	})
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("AsyncRetry() error = %v, want canceled", err)
	}
}
