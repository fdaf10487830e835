package watchcache

import "context"

// EventKind tags a change event coming off a watch stream.
// The zero value is KindUnknown so an unmapped wire type never
// masquerades as a real event.
type EventKind uint8

const (
	KindUnknown EventKind = iota
	KindAdded
	KindModified
	KindDeleted
	KindError
)

// Wire names used by the HTTP/websocket watch envelope.
const (
	wireAdded    = "ADDED"
	wireModified = "MODIFIED"
	wireDeleted  = "DELETED"
	wireError    = "ERROR"
)

func (k EventKind) String() string {
	switch k {
	case KindAdded:
		return wireAdded
	case KindModified:
		return wireModified
	case KindDeleted:
		return wireDeleted
	case KindError:
		return wireError
	default:
		return "UNKNOWN"
	}
}

// KindFromWire maps an envelope type string to an EventKind.
// ok is false for types this library does not understand.
func KindFromWire(t string) (EventKind, bool) {
	switch t {
	case wireAdded:
		return KindAdded, true
	case wireModified:
		return KindModified, true
	case wireDeleted:
		return KindDeleted, true
	case wireError:
		return KindError, true
	default:
		return KindUnknown, false
	}
}

// RawEvent is one change event as delivered by a Source, before any
// staleness filtering. The watcher inspects only ID, Version and Kind;
// Object stays opaque until a consumer reads it back through the codec.
type RawEvent struct {
	Kind    EventKind
	ID      string // object identity as sent by the server
	Version string // version string as sent by the server
	Object  []byte // encoded object payload; nil for KindError
	Err     error  // cause for KindError; nil otherwise
}

// Subscription is one live watch stream.
//
// Events delivery is serialized: the channel is the only delivery path and
// the producer must not send concurrently. After the channel is closed,
// Err reports the terminal cause: nil means orderly completion (server
// closed the stream), ErrCursorExpired means the resume position is gone,
// anything else is a transport failure.
//
// Cancel releases the stream. After Cancel, the Events channel must still
// close promptly; a producer must never block forever on a send.
type Subscription interface {
	Events() <-chan RawEvent
	Err() error
	Cancel()
}

// Source opens watch streams. namespace scopes the stream ("" = all
// namespaces); fromVersion is the resume cursor as a decimal string,
// "0" meaning "from the beginning".
//
// Implementations must support re-invocation with an updated fromVersion
// after a previous subscription terminated. A Watch error wrapping
// ErrCursorExpired tells the watcher to invalidate and resync.
type Source interface {
	Watch(ctx context.Context, namespace, fromVersion string) (Subscription, error)
}
