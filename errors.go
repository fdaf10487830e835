package watchcache

import (
	"errors"
	"fmt"
)

var (
	// ErrCursorExpired signals that the server no longer retains the
	// requested resume position. The watcher reacts by clearing the cache,
	// resetting the cursor and resyncing from the beginning of the stream.
	ErrCursorExpired = errors.New("watchcache: resume cursor no longer available")

	// ErrStreamClosed is the cause reported to ConnectionError when the
	// server ends a watch stream without a transport failure (idle timeout,
	// orderly close). The watcher resubscribes from the same cursor.
	ErrStreamClosed = errors.New("watchcache: watch stream closed by server")

	// ErrStopped is returned by Start after the watcher has been stopped.
	ErrStopped = errors.New("watchcache: watcher stopped")
)

// UnknownEventError reports an event kind outside the watch protocol
// contract. It is not an expected runtime condition: the watcher tears
// down the offending subscription and reconnects.
type UnknownEventError struct {
	Kind EventKind
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("watchcache: unrecognized event kind %d (%s)", e.Kind, e.Kind)
}
