// Package sloghooks logs watcher signals through log/slog, with sampling
// for the hot DataChanged path.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/watchcache"
)

type Options struct {
	// DataChangedEvery samples the per-event changed signal to avoid
	// floods; 0/1 = log all.
	DataChangedEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	changedCtr atomic.Uint64
}

var _ watchcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Connected() {
	if h.l == nil {
		return
	}
	h.l.Info("watchcache.connected")
}

func (h *Hooks) ConnectionError(err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("watchcache.connection_error", "err", err)
}

func (h *Hooks) DataChanged() {
	if h.l == nil || !sample(h.opts.DataChangedEvery, &h.changedCtr) {
		return
	}
	h.l.Debug("watchcache.data_changed")
}
