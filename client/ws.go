package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/unkn0wn-root/watchcache"
	"github.com/unkn0wn-root/watchcache/internal/wire"
)

// WatchSocket opens the same watch stream over a websocket, for servers
// that upgrade the collection path. Each message is one envelope; a normal
// close counts as orderly completion.
func (c *Client[V]) WatchSocket(ctx context.Context, namespace, fromVersion string) (watchcache.Subscription, error) {
	u, err := url.Parse(c.base + c.path(namespace, ""))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.RawQuery = url.Values{"watch": {"true"}, "from": {fromVersion}}.Encode()

	hdr := http.Header{}
	if c.token != "" {
		hdr.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), hdr)
	if err != nil {
		if resp != nil {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
			resp.Body.Close()
			return nil, responseError(resp.StatusCode, data)
		}
		return nil, fmt.Errorf("client: websocket dial: %w", err)
	}

	s := &socketSub{
		conn:   conn,
		events: make(chan watchcache.RawEvent),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

type socketSub struct {
	conn   *websocket.Conn
	events chan watchcache.RawEvent
	done   chan struct{}
	once   sync.Once

	err error // terminal cause; written before events closes
}

var _ watchcache.Subscription = (*socketSub)(nil)

func (s *socketSub) Events() <-chan watchcache.RawEvent { return s.events }

func (s *socketSub) Err() error { return s.err }

func (s *socketSub) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close() // unblocks the read loop
	})
}

func (s *socketSub) loop() {
	defer close(s.events)
	defer s.conn.Close()

	for {
		var env wire.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				// orderly close; cause stays nil
			case canceled(s.done):
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
