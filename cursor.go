package watchcache

import (
	"strconv"
	"sync/atomic"
)

// sentinelVersion is the "no data yet" cursor value. Real versions are
// strictly positive, so 0 never collides with a stream position.
const sentinelVersion uint64 = 0

// cursor tracks the last successfully applied stream position. Written only
// by the delivery loop; read concurrently by Cursor() and the resubscribe
// path, hence the atomic.
type cursor struct {
	v atomic.Uint64
}

func (c *cursor) load() uint64 { return c.v.Load() }
func (c *cursor) set(v uint64) { c.v.Store(v) }
func (c *cursor) reset()       { c.v.Store(sentinelVersion) }

// String renders the cursor the way Source.Watch consumes it.
func (c *cursor) String() string { return strconv.FormatUint(c.v.Load(), 10) }

// parseVersion parses a wire version string. Malformed input degrades to the
// sentinel rather than failing the event.
func parseVersion(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return sentinelVersion
	}
	return v
}
