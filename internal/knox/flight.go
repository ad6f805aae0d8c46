package knox

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// flightGroup deduplicates concurrent compiles per fingerprint. It
// layers waiter refcounting on top of singleflight so that a waiter
// abandoning a shared run does not disturb the others: only when the
// last waiter leaves is the underlying run cancelled and the slot
// forgotten. The slot is always released when the run finishes, so a
// failed compile can be retried by a later caller.
type flightGroup struct {
	sf  singleflight.Group
	mu  sync.Mutex
	cur map[string]*flight
}

type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func newFlightGroup() *flightGroup {
	return &flightGroup{cur: make(map[string]*flight)}
}

// do executes fn at most once per key across concurrent callers and
// hands every caller the shared result. The run gets its own context
// bounded by timeout, detached from any single caller; ctx governs only
// this caller's wait. Returns shared=true when the result came from a
// run another caller started.
func (g *flightGroup) do(ctx context.Context, key string, timeout time.Duration, fn func(context.Context) (*Report, error)) (*Report, bool, error) {
	g.mu.Lock()
	fl, ok := g.cur[key]
	if !ok {
		runCtx, cancel := context.WithTimeout(context.Background(), timeout)
		fl = &flight{ctx: runCtx, cancel: cancel}
		g.cur[key] = fl
	}
	fl.waiters++
	g.mu.Unlock()

	ch := g.sf.DoChan(key, func() (any, error) {
		return fn(fl.ctx)
	})

	release := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		fl.waiters--
		if fl.waiters == 0 {
			fl.cancel()
			if g.cur[key] == fl {
				delete(g.cur, key)
				g.sf.Forget(key)
			}
		}
	}

	select {
	case res := <-ch:
		release()
		rep, _ := res.Val.(*Report)
		return rep, res.Shared, res.Err
	case <-ctx.Done():
		release()
		return nil, false, ctx.Err()
	}
}
