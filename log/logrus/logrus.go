package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/watchcache"
)

type LogrusLogger struct{ E *logrus.Entry }

var _ watchcache.Logger = LogrusLogger{}

func (l LogrusLogger) Trace(msg string, f watchcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Trace(msg)
}
func (l LogrusLogger) Debug(msg string, f watchcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f watchcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}
func (l LogrusLogger) Warn(msg string, f watchcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}
func (l LogrusLogger) Error(msg string, f watchcache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
