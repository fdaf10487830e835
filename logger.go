package watchcache

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around your logging
// stack (see log/zap, log/logrus, log/slog, log/glog). If Logger is nil in
// Options, logging is disabled.
//
// Trace is the level used for per-event noise (dropped stale events);
// adapters whose backend has no trace level map it to debug.
type Logger interface {
	Trace(msg string, f Fields)
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Trace(string, Fields) {}
func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
