package watchcache

// Hooks receive the watcher's observable signals. They fire synchronously
// at the point of occurrence on the event delivery path, so implementations
// MUST be cheap and non-blocking (wrap with hooks/async otherwise).
//
// DataChanged is level-triggered: it means "the cache mutated, re-read your
// snapshot", one call per applied event, never a diff.
type Hooks interface {
	// Connected fires after a watch stream is established, including after
	// every successful resubscribe.
	Connected()

	// ConnectionError fires when a stream ends, carrying the cause.
	// ErrStreamClosed means orderly completion; a cause matching
	// ErrCursorExpired means the cache was invalidated for a full resync.
	ConnectionError(err error)

	// DataChanged fires after every cache mutation (insert, replace,
	// delete, invalidation).
	DataChanged()
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) Connected()            {}
func (NopHooks) ConnectionError(error) {}
func (NopHooks) DataChanged()          {}
