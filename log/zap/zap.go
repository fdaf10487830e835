package zap

import (
	"github.com/unkn0wn-root/watchcache"
	"go.uber.org/zap"
)

type ZapLogger struct{ L *zap.Logger }

var _ watchcache.Logger = ZapLogger{}

// zap has no trace level; Trace maps to debug.
func (z ZapLogger) Trace(msg string, f watchcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Debug(msg string, f watchcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f watchcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f watchcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f watchcache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f watchcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
