//go:build go1.21

package slog

import (
	"context"
	stdslog "log/slog"

	"github.com/unkn0wn-root/watchcache"
)

// LevelTrace sits below slog's debug so per-event noise can be filtered
// independently.
const LevelTrace = stdslog.LevelDebug - 4

var _ watchcache.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

func (s Logger) Trace(msg string, f watchcache.Fields) {
	s.L.LogAttrs(context.Background(), LevelTrace, msg, attrs(f)...)
}
func (s Logger) Debug(msg string, f watchcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelDebug, msg, attrs(f)...)
}
func (s Logger) Info(msg string, f watchcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelInfo, msg, attrs(f)...)
}
func (s Logger) Warn(msg string, f watchcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelWarn, msg, attrs(f)...)
}
func (s Logger) Error(msg string, f watchcache.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelError, msg, attrs(f)...)
}

func attrs(f watchcache.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	out := make([]stdslog.Attr, 0, len(f))
	for k, v := range f {
		out = append(out, stdslog.Any(k, v))
	}
	return out
}
