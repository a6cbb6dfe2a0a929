package render

import (
	"context"
	"sync"
	"time"
)

const idlePollInterval = 50 * time.Millisecond

// inflightTracker counts open network requests of a page. Any request start
// or finish resets the quiet timer, like puppeteer's waitForNetworkIdle.
type inflightTracker struct {
	mu        sync.Mutex
	inflight  map[string]struct{}
	lastEvent time.Time
	now       func() time.Time
}

func newInflightTracker() *inflightTracker {
	return &inflightTracker{
		inflight:  make(map[string]struct{}),
		lastEvent: time.Now(),
		now:       time.Now,
	}
}

func (t *inflightTracker) start(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastEvent = t.now()
}

func (t *inflightTracker) finish(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inflight[id]; !ok {
		return
	}
	delete(t.inflight, id)
	t.lastEvent = t.now()
}

func (t *inflightTracker) idleFor(maxInflight int) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inflight) > maxInflight {
		return 0, false
	}
	return t.now().Sub(t.lastEvent), true
}

// wait blocks until the page is idle per the given definition or ctx ends.
func (t *inflightTracker) wait(ctx context.Context, idle Idle) error {
	if idle.MaxInflight < 0 {
		idle.MaxInflight = 0
	}
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if quiet, ok := t.idleFor(idle.MaxInflight); ok && quiet >= idle.Quiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
