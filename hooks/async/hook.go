// Package asynchook decouples notification consumers from the watcher's
// delivery loop: signals are queued and replayed on worker goroutines, and
// dropped when the queue is full rather than blocking event processing.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{DataChangedEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 signals
//	defer hooks.Close()
//
//	w, _ := watchcache.New[Route](watchcache.Options[Route]{
//	    Source: src,
//	    Codec:  codec.JSON[Route]{},
//	    Hooks:  hooks, // or `raw` if synchronous delivery is fine
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/watchcache"
)

type Hooks struct {
	inner watchcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ watchcache.Hooks = (*Hooks)(nil)

func New(inner watchcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) Connected()                { h.try(func() { h.inner.Connected() }) }
func (h *Hooks) ConnectionError(err error) { h.try(func() { h.inner.ConnectionError(err) }) }
func (h *Hooks) DataChanged()              { h.try(func() { h.inner.DataChanged() }) }
