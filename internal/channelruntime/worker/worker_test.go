package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyedKeepsOrderPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[int64][]int{}
	var wg sync.WaitGroup
	type job struct {
		chat int64
		seq  int
	}
	k := NewKeyed[int64, job](ctx, 2, 4, func(_ context.Context, j job) {
		defer wg.Done()
		mu.Lock()
		seen[j.chat] = append(seen[j.chat], j.seq)
		mu.Unlock()
	})

	for seq := 0; seq < 5; seq++ {
		for _, chat := range []int64{1, 2, 3} {
			wg.Add(1)
			if err := k.Submit(ctx, chat, job{chat: chat, seq: seq}); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
		}
	}
	wg.Wait()

	for chat, seqs := range seen {
		for i, s := range seqs {
			if s != i {
				t.Fatalf("chat %d out of order: %v", chat, seqs)
			}
		}
	}

	cancel()
	k.Wait()
}

func TestKeyedRespectsConcurrencyLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	k := NewKeyed[int, int](ctx, 2, 1, func(_ context.Context, _ int) {
		defer wg.Done()
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
	})
	for i := 0; i < 6; i++ {
		wg.Add(1)
		if err := k.Submit(ctx, i, i); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	wg.Wait()
	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", got)
	}
}

func TestKeyedRetiresIdleWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled atomic.Int32
	k := NewKeyed[int64, int](ctx, 2, 4, func(_ context.Context, _ int) {
		handled.Add(1)
	}).WithIdleTimeout(20 * time.Millisecond)

	for _, chat := range []int64{1, 2, 3} {
		if err := k.Submit(ctx, chat, 1); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for k.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("idle workers not retired, %d left", k.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := handled.Load(); got != 3 {
		t.Fatalf("handled = %d, want 3", got)
	}

	if err := k.Submit(ctx, 1, 2); err != nil {
		t.Fatalf("Submit() after retire error = %v", err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for handled.Load() != 4 {
		if time.Now().After(deadline) {
			t.Fatalf("job after retire was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	k.Wait()
}

func TestEnqueueStopsWithWorkers(t *testing.T) {
	workersCtx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := make(chan int)
	if err := Enqueue(context.Background(), workersCtx, jobs, 1); err == nil {
		t.Fatalf("expected error after workers stopped")
	}
}
