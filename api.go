package watchcache

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/unkn0wn-root/watchcache/codec"
	"github.com/unkn0wn-root/watchcache/store"
)

// Watcher keeps a local, eventually consistent mirror of one remote
// collection, fed by a Source's change-event stream. V is the caller's
// object type; payload (de)serialization is handled by a pluggable
// Codec[V].
//
// The mirror is safe for concurrent reads while the single delivery loop
// mutates it.
type Watcher[V any] interface {
	// Start opens the watch stream from the current cursor and launches the
	// delivery loop. The first subscribe runs synchronously: its error is
	// returned to the caller without retry. Idempotent while active;
	// returns ErrStopped after Stop.
	Start(ctx context.Context) error

	// Stop cancels any pending retry, tears down the active subscription
	// and closes the cache store. Safe to call multiple times. Must not be
	// called from inside a Hooks callback.
	Stop() error

	// Active reports whether the watcher is between a successful Start and
	// Stop. Resubscribe gaps do not flip it.
	Active() bool

	// Get returns the latest known state of one object. Identity matching
	// is case-insensitive.
	Get(id string) (V, bool, error)

	// Snapshot returns a point-in-time copy of the whole mirror, keyed by
	// identity as received from the server. Safe from any goroutine; treat
	// Hooks.DataChanged as the signal to re-read.
	Snapshot() (map[string]V, error)

	// Len reports the number of mirrored objects.
	Len() int

	// Cursor returns the resume position as a decimal string ("0" = none).
	Cursor() string
}

// Options tune a watcher. Only Source and Codec are required; the rest
// have sensible defaults.
type Options[V any] struct {
	// Required
	Source Source
	Codec  codec.Codec[V]

	// Namespace scopes the watch; empty watches all namespaces.
	Namespace string

	Store  store.Store // nil => store.NewMemory()
	Logger Logger      // nil => NopLogger
	Hooks  Hooks       // nil => NopHooks

	// RetryInterval is the delay before each resubscribe attempt
	// (0 => 1s, constant).
	RetryInterval time.Duration

	// NewBackoff overrides RetryInterval with a custom retry policy
	// (e.g. backoff.NewExponentialBackOff). Invoked once per Start; the
	// policy is Reset after every successful subscribe. A policy returning
	// backoff.Stop halts the watcher.
	NewBackoff func() backoff.BackOff
}

func New[V any](opts Options[V]) (Watcher[V], error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("watchcache: source is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("watchcache: codec is required")
	}

	w := &watcher[V]{
		src:    opts.Source,
		ns:     opts.Namespace,
		codec:  opts.Codec,
		stopCh: make(chan struct{}),
	}
	w.log = coalesce[Logger](opts.Logger, NopLogger{})
	w.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if opts.Store != nil {
		w.cache = opts.Store
	} else {
		w.cache = store.NewMemory()
	}

	retry := coalesce(opts.RetryInterval, time.Second)
	if opts.NewBackoff != nil {
		w.newBackoff = opts.NewBackoff
	} else {
		w.newBackoff = func() backoff.BackOff { return backoff.NewConstantBackOff(retry) }
	}
	return w, nil
}
