package glog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/unkn0wn-root/watchcache"
)

// GlogLogger adapts golang/glog. glog is unstructured, so fields render as
// sorted "k=v" pairs appended to the message. Trace and Debug gate on
// verbosity levels 2 and 1.
type GlogLogger struct{}

var _ watchcache.Logger = GlogLogger{}

func (GlogLogger) Trace(msg string, f watchcache.Fields) {
	if glog.V(2) {
		glog.InfoDepth(1, render(msg, f))
	}
}
func (GlogLogger) Debug(msg string, f watchcache.Fields) {
	if glog.V(1) {
		glog.InfoDepth(1, render(msg, f))
	}
}
func (GlogLogger) Info(msg string, f watchcache.Fields)  { glog.InfoDepth(1, render(msg, f)) }
func (GlogLogger) Warn(msg string, f watchcache.Fields)  { glog.WarningDepth(1, render(msg, f)) }
func (GlogLogger) Error(msg string, f watchcache.Fields) { glog.ErrorDepth(1, render(msg, f)) }

func render(msg string, f watchcache.Fields) string {
	if len(f) == 0 {
		return msg
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, f[k])
	}
	return b.String()
}
