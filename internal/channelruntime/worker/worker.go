package worker

import (
	"context"
	"sync"
	"time"
)

const defaultQueueSize = 16

type StartOptions[J any] struct {
	Ctx    context.Context
	Sem    chan struct{}
	Jobs   <-chan J
	Handle func(context.Context, J)
	Done   func()
	// Idle is called after IdleTimeout without a job. The worker exits when
	// it returns true.
	IdleTimeout time.Duration
	Idle        func() bool
}

// Start consumes Jobs in order on one goroutine. Each job holds a slot of
// Sem while it runs, so many workers can share one concurrency limit.
func Start[J any](opts StartOptions[J]) {
	go func() {
		if opts.Done != nil {
			defer opts.Done()
		}
		var idle <-chan time.Time
		var timer *time.Timer
		if opts.IdleTimeout > 0 && opts.Idle != nil {
			timer = time.NewTimer(opts.IdleTimeout)
			defer timer.Stop()
			idle = timer.C
		}
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case <-idle:
				if opts.Idle() {
					return
				}
				timer.Reset(opts.IdleTimeout)
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					return
				}
				func() {
					defer func() { <-opts.Sem }()
					opts.Handle(opts.Ctx, job)
				}()
				if timer != nil {
					timer.Reset(opts.IdleTimeout)
				}
			}
		}
	}()
}

func Enqueue[J any](ctx, workersCtx context.Context, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = workersCtx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-workersCtx.Done():
		return workersCtx.Err()
	case jobs <- job:
		return nil
	}
}

// Keyed runs one ordered worker per key, all sharing a concurrency limit.
// Jobs for the same key run in submission order; different keys run in
// parallel up to the limit. With an idle timeout, a key's worker exits once
// its queue stays empty that long and is restarted by the next Submit.
type Keyed[K comparable, J any] struct {
	ctx         context.Context
	sem         chan struct{}
	handle      func(context.Context, J)
	queueSize   int
	idleTimeout time.Duration

	mu     sync.Mutex
	queues map[K]*keyedQueue[J]
	wg     sync.WaitGroup
}

type keyedQueue[J any] struct {
	jobs chan J
	// pending counts Submit calls between queue lookup and send; the worker
	// must not retire while one is in progress.
	pending int
}

func NewKeyed[K comparable, J any](ctx context.Context, maxConcurrency, queueSize int, handle func(context.Context, J)) *Keyed[K, J] {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Keyed[K, J]{
		ctx:       ctx,
		sem:       make(chan struct{}, maxConcurrency),
		handle:    handle,
		queueSize: queueSize,
		queues:    make(map[K]*keyedQueue[J]),
	}
}

// WithIdleTimeout retires per-key workers after d without jobs. Call it
// before the first Submit.
func (k *Keyed[K, J]) WithIdleTimeout(d time.Duration) *Keyed[K, J] {
	k.idleTimeout = d
	return k
}

// Submit queues job for key, starting the key's worker on first use. It
// blocks while the key's queue is full.
func (k *Keyed[K, J]) Submit(ctx context.Context, key K, job J) error {
	q := k.acquire(key)
	err := Enqueue(ctx, k.ctx, q.jobs, job)
	k.mu.Lock()
	q.pending--
	k.mu.Unlock()
	return err
}

// Len reports how many keys currently have a running worker.
func (k *Keyed[K, J]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.queues)
}

func (k *Keyed[K, J]) acquire(key K) *keyedQueue[J] {
	k.mu.Lock()
	defer k.mu.Unlock()
	if q, ok := k.queues[key]; ok {
		q.pending++
		return q
	}
	q := &keyedQueue[J]{jobs: make(chan J, k.queueSize), pending: 1}
	k.queues[key] = q
	k.wg.Add(1)
	Start(StartOptions[J]{
		Ctx:         k.ctx,
		Sem:         k.sem,
		Jobs:        q.jobs,
		Handle:      k.handle,
		Done:        k.wg.Done,
		IdleTimeout: k.idleTimeout,
		Idle:        func() bool { return k.retire(key, q) },
	})
	return q
}

func (k *Keyed[K, J]) retire(key K, q *keyedQueue[J]) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if q.pending > 0 || len(q.jobs) > 0 {
		return false
	}
	if k.queues[key] == q {
		delete(k.queues, key)
	}
	return true
}

// Wait blocks until every worker has exited, which happens once the
// context given to NewKeyed is done.
func (k *Keyed[K, J]) Wait() {
	k.wg.Wait()
}
