package watchcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/unkn0wn-root/watchcache/codec"
	"github.com/unkn0wn-root/watchcache/internal/util"
	"github.com/unkn0wn-root/watchcache/internal/wire"
	"github.com/unkn0wn-root/watchcache/store"
)

// watcher is the reflector: it owns the subscribe -> consume -> backoff ->
// resubscribe loop and is the only writer of the cache and cursor. All
// mutation happens on the run goroutine; readers go through the store's
// own synchronization.
type watcher[V any] struct {
	src   Source
	ns    string
	codec codec.Codec[V]
	cache store.Store
	log   Logger
	hooks Hooks

	newBackoff func() backoff.BackOff

	cur cursor

	mu      sync.Mutex
	sub     Subscription
	active  bool
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ Watcher[struct{}] = (*watcher[struct{}])(nil)

func (w *watcher[V]) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrStopped
	}
	if w.active {
		w.mu.Unlock()
		return nil
	}

	sub, err := w.src.Watch(ctx, w.ns, w.cur.String())
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.sub = sub
	w.active = true
	w.mu.Unlock()

	sid := ulid.Make().String()
	w.log.Info("watch established", Fields{"session": sid, "namespace": w.ns, "from": w.cur.String()})
	w.hooks.Connected()

	w.wg.Add(1)
	go w.run(ctx, sub, sid)
	return nil
}

func (w *watcher[V]) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.active = false
		sub := w.sub
		w.sub = nil
		w.mu.Unlock()

		close(w.stopCh)
		if sub != nil {
			sub.Cancel()
		}
		w.wg.Wait()
		_ = w.cache.Close()
	})
	return nil
}

func (w *watcher[V]) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *watcher[V]) Cursor() string { return w.cur.String() }

func (w *watcher[V]) Len() int { return w.cache.Len() }

func (w *watcher[V]) Get(id string) (V, bool, error) {
	var zero V
	key := util.FoldID(id)
	raw, ok, err := w.cache.Get(key)
	if err != nil || !ok {
		return zero, false, err
	}
	_, _, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		_ = w.cache.Delete(key) // self-heal corrupt
		return zero, false, nil
	}
	v, err := w.codec.Decode(payload)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (w *watcher[V]) Snapshot() (map[string]V, error) {
	out := make(map[string]V, w.cache.Len())
	var decodeErr error
	err := w.cache.Range(func(_ string, raw []byte) bool {
		_, id, payload, err := wire.DecodeEntry(raw)
		if err != nil {
			return true // skip corrupt; next event for the key repairs it
		}
		v, err := w.codec.Decode(payload)
		if err != nil {
			decodeErr = err
			return false
		}
		out[id] = v
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

// run is the dedicated delivery loop: it drains one subscription at a time
// and owns every resubscribe, preserving the single-writer guarantee.
func (w *watcher[V]) run(ctx context.Context, sub Subscription, sid string) {
	defer w.wg.Done()
	bo := w.newBackoff()

	for {
		perr := w.consume(sub, sid)

		if w.isStopped() {
			return
		}

		cause := sub.Err()
		if perr != nil {
			sub.Cancel()
			cause = perr
		}
		if cause == nil {
			cause = ErrStreamClosed
		}
		w.log.Warn("watch terminated", Fields{"session": sid, "namespace": w.ns, "err": cause})
		w.hooks.ConnectionError(cause)
		if errors.Is(cause, ErrCursorExpired) {
			w.invalidate()
		}

		next, nsid, ok := w.resubscribe(ctx, bo)
		if !ok {
			return
		}
		sub, sid = next, nsid
		bo.Reset()
	}
}

func (w *watcher[V]) consume(sub Subscription, sid string) error {
	for ev := range sub.Events() {
		if err := w.apply(ev); err != nil {
			w.log.Error("protocol violation on watch stream", Fields{"session": sid, "err": err})
			return err
		}
	}
	return nil
}

// apply runs one event through the staleness rule and mutates the cache.
// It returns an error only for protocol violations; everything else is
// handled in place so the stream stays alive.
func (w *watcher[V]) apply(ev RawEvent) error {
	switch ev.Kind {
	case KindError:
		// Diagnostic only; an in-stream error does not end the watch.
		w.log.Warn("error event on watch stream", Fields{"err": ev.Err})
		return nil
	case KindAdded, KindModified, KindDeleted:
	default:
		return &UnknownEventError{Kind: ev.Kind}
	}

	if ev.ID == "" || len(ev.ID) > wire.MaxIDLen {
		w.log.Warn("event with unusable identity dropped", Fields{"kind": ev.Kind.String(), "idlen": len(ev.ID), "version": ev.Version})
		return nil
	}

	v := parseVersion(ev.Version)
	key := util.FoldID(ev.ID)

	have, exists := w.entryVersion(key)
	if exists && v <= have {
		// Stale: does not advance what we know about this identity.
		// The cursor stays put as well.
		w.log.Trace("stale event dropped", Fields{"id": ev.ID, "kind": ev.Kind.String(), "version": v, "have": have})
		return nil
	}

	switch ev.Kind {
	case KindAdded, KindModified:
		if err := w.cache.Set(key, wire.EncodeEntry(v, ev.ID, ev.Object)); err != nil {
			// Not applied: the cursor stays put so a resume replays it.
			w.log.Error("cache write failed", Fields{"id": ev.ID, "err": err})
			return nil
		}
		w.hooks.DataChanged()
	case KindDeleted:
		// Deletion of an unknown identity is a silent no-op, but the cursor
		// still advances below: it tracks stream position, not cache state.
		if exists {
			if err := w.cache.Delete(key); err != nil {
				w.log.Error("cache delete failed", Fields{"id": ev.ID, "err": err})
				return nil
			}
			w.hooks.DataChanged()
		}
	}

	// Advance last, after the mutation landed and its hook fired: a reader
	// that observes the new cursor also observes the event's effects.
	w.cur.set(v)
	return nil
}

// entryVersion reads just the version header of a cached entry.
func (w *watcher[V]) entryVersion(key string) (uint64, bool) {
	raw, ok, err := w.cache.Get(key)
	if err != nil {
		w.log.Warn("cache read failed; treating entry as absent", Fields{"key": key, "err": err})
		return 0, false
	}
	if !ok {
		return 0, false
	}
	v, err := wire.DecodeEntryVersion(raw)
	if err != nil {
		_ = w.cache.Delete(key) // self-heal corrupt
		return 0, false
	}
	return v, true
}

// invalidate implements the cursor-expiry path: the mirror can no longer be
// patched forward, so drop everything and resync from the beginning of the
// stream.
func (w *watcher[V]) invalidate() {
	if err := w.cache.Clear(); err != nil {
		w.log.Error("cache clear failed during resync", Fields{"err": err})
	}
	w.cur.reset()
	w.log.Warn("cursor expired; cache invalidated, next subscribe performs full resync", Fields{"namespace": w.ns})
	w.hooks.DataChanged()
}

// resubscribe waits out the retry policy and reopens the stream from the
// current cursor. It never completes once Stop has been requested: the flag
// is checked at the wait, after the wait and again before the new
// subscription is published.
func (w *watcher[V]) resubscribe(ctx context.Context, bo backoff.BackOff) (Subscription, string, bool) {
	for {
		if !w.waitRetry(bo) {
			return nil, "", false
		}
		if ctx.Err() != nil {
			w.log.Warn("watch context cancelled; watcher halting", Fields{"err": ctx.Err()})
			w.deactivate()
			return nil, "", false
		}

		sub, err := w.src.Watch(ctx, w.ns, w.cur.String())
		if err != nil {
			w.log.Warn("resubscribe failed", Fields{"namespace": w.ns, "from": w.cur.String(), "err": err})
			w.hooks.ConnectionError(err)
			if errors.Is(err, ErrCursorExpired) {
				w.invalidate()
			}
			continue
		}

		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			sub.Cancel()
			return nil, "", false
		}
		w.sub = sub
		w.mu.Unlock()

		sid := ulid.Make().String()
		w.log.Info("watch re-established", Fields{"session": sid, "namespace": w.ns, "from": w.cur.String()})
		w.hooks.Connected()
		return sub, sid, true
	}
}

// waitRetry blocks until the next retry is due. false means stop: either
// Stop was requested or the policy gave up.
func (w *watcher[V]) waitRetry(bo backoff.BackOff) bool {
	d := bo.NextBackOff()
	if d == backoff.Stop {
		w.log.Error("retry policy exhausted; watcher halting", nil)
		w.deactivate()
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-w.stopCh:
		return false
	}
}

func (w *watcher[V]) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

func (w *watcher[V]) deactivate() {
	w.mu.Lock()
	w.active = false
	w.mu.Unlock()
}
