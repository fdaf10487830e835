package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/unkn0wn-root/watchcache"
	"github.com/unkn0wn-root/watchcache/internal/wire"
)

// Watch opens a change-event stream for the collection, starting after
// fromVersion ("0" = from the beginning). The response is a long-lived
// newline-delimited JSON stream of envelopes.
//
// HTTP 410 on the request and an in-stream ERROR envelope with code 410
// both surface as watchcache.ErrCursorExpired.
func (c *Client[V]) Watch(ctx context.Context, namespace, fromVersion string) (watchcache.Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)

	q := url.Values{"watch": {"true"}, "from": {fromVersion}}
	req, err := c.newRequest(wctx, http.MethodGet, c.path(namespace, ""), q, nil, "")
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		resp.Body.Close()
		cancel()
		return nil, responseError(resp.StatusCode, data)
	}

	s := &streamSub{
		events: make(chan watchcache.RawEvent),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.loop(resp.Body)
	return s, nil
}

// streamSub adapts one HTTP watch response to watchcache.Subscription.
// A single goroutine decodes frames and pushes them on the events channel,
// so delivery is serialized by construction.
type streamSub struct {
	events chan watchcache.RawEvent
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	err error // terminal cause; written before events closes
}

var _ watchcache.Subscription = (*streamSub)(nil)

func (s *streamSub) Events() <-chan watchcache.RawEvent { return s.events }

func (s *streamSub) Err() error { return s.err }

func (s *streamSub) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
}

func (s *streamSub) loop(body io.ReadCloser) {
	defer close(s.events)
	defer body.Close()

	dec := json.NewDecoder(body)
	for {
		var env wire.Envelope
		if err := dec.Decode(&env); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// orderly close; cause stays nil
			case canceled(s.done):
				// local cancel racing the read; not a failure
			default:
				s.err = err
			}
			return
		}
		ev, terminal := decodeEnvelope(env)
		if terminal != nil {
			s.err = terminal
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// decodeEnvelope maps one watch frame to a RawEvent. A non-nil terminal
// error ends the subscription (in-stream cursor expiry).
func decodeEnvelope(env wire.Envelope) (watchcache.RawEvent, error) {
	kind, ok := watchcache.KindFromWire(env.Type)
	if !ok {
		// Delivered as-is; the watcher treats it as a protocol violation.
		return watchcache.RawEvent{Kind: watchcache.KindUnknown}, nil
	}

	if kind == watchcache.KindError {
		st := env.Status
		if st != nil && st.Code == http.StatusGone {
			return watchcache.RawEvent{}, fmt.Errorf("%w: %s", watchcache.ErrCursorExpired, st.Message)
		}
		cause := &APIError{Code: 0, Message: "watch error"}
		if st != nil {
			cause = &APIError{Code: st.Code, Message: st.Message}
		}
		return watchcache.RawEvent{Kind: watchcache.KindError, Err: cause}, nil
	}

	meta, err := wire.ParseMeta(env.Object)
	if err != nil {
		return watchcache.RawEvent{
			Kind: watchcache.KindError,
			Err:  fmt.Errorf("client: bad object in %s event: %w", env.Type, err),
		}, nil
	}
	return watchcache.RawEvent{
		Kind:    kind,
		ID:      meta.ID,
		Version: meta.Version,
		Object:  env.Object,
	}, nil
}

func canceled(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}
