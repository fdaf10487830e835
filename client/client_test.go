package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/unkn0wn-root/watchcache"
	"github.com/unkn0wn-root/watchcache/codec"
)

type testRoute struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Host    string `json:"host,omitempty"`
}

func newTestClient(t *testing.T, baseURL string) *Client[testRoute] {
	t.Helper()
	c, err := New[testRoute](Config[testRoute]{
		BaseURL: baseURL,
		Kind:    "routes",
		Codec:   codec.JSON[testRoute]{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func recv(t *testing.T, sub watchcache.Subscription) (watchcache.RawEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return watchcache.RawEvent{}, false
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New[testRoute](Config[testRoute]{Kind: "routes", Codec: codec.JSON[testRoute]{}}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := New[testRoute](Config[testRoute]{BaseURL: "http://x", Codec: codec.JSON[testRoute]{}}); err == nil {
		t.Fatal("expected error for missing kind")
	}
	if _, err := New[testRoute](Config[testRoute]{BaseURL: "http://x", Kind: "routes"}); err == nil {
		t.Fatal("expected error for missing codec")
	}
}

// crudServer is a tiny in-memory collection behind the path scheme the
// client speaks.
func crudServer(t *testing.T) (*httptest.Server, map[string]testRoute) {
	t.Helper()
	var mu sync.Mutex
	objs := map[string]testRoute{}

	r := mux.NewRouter()
	col := "/api/v1/namespaces/{ns}/routes"
	item := col + "/{name}"

	r.HandleFunc(col, func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		items := make([]json.RawMessage, 0, len(objs))
		for _, o := range objs {
			b, _ := json.Marshal(o)
			items = append(items, b)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"version": "10", "items": items})
	}).Methods(http.MethodGet)

	r.HandleFunc(col, func(w http.ResponseWriter, req *http.Request) {
		var o testRoute
		_ = json.NewDecoder(req.Body).Decode(&o)
		mu.Lock()
		objs[o.ID] = o
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(o)
	}).Methods(http.MethodPost)

	r.HandleFunc(item, func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["ns"] + "/" + mux.Vars(req)["name"]
		mu.Lock()
		o, ok := objs[id]
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 404, "message": "route not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(o)
	}).Methods(http.MethodGet)

	r.HandleFunc(item, func(w http.ResponseWriter, req *http.Request) {
		var o testRoute
		_ = json.NewDecoder(req.Body).Decode(&o)
		mu.Lock()
		objs[o.ID] = o
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(o)
	}).Methods(http.MethodPut)

	r.HandleFunc(item, func(w http.ResponseWriter, req *http.Request) {
		if ct := req.Header.Get("Content-Type"); ct != "application/merge-patch+json" {
			t.Errorf("patch content type = %q", ct)
		}
		id := mux.Vars(req)["ns"] + "/" + mux.Vars(req)["name"]
		var patch map[string]any
		_ = json.NewDecoder(req.Body).Decode(&patch)
		mu.Lock()
		o := objs[id]
		if h, ok := patch["host"].(string); ok {
			o.Host = h
		}
		objs[id] = o
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(o)
	}).Methods(http.MethodPatch)

	r.HandleFunc(item, func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["ns"] + "/" + mux.Vars(req)["name"]
		mu.Lock()
		delete(objs, id)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodDelete)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, objs
}

func TestCRUD(t *testing.T) {
	srv, _ := crudServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	created, err := c.Create(ctx, "prod", testRoute{ID: "prod/web", Version: "1", Host: "a.example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "prod/web" {
		t.Fatalf("created = %+v", created)
	}

	got, err := c.Get(ctx, "prod", "web")
	if err != nil || got.Host != "a.example.com" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	patched, err := c.Update(ctx, "prod", "web", []byte(`{"host":"b.example.com"}`))
	if err != nil || patched.Host != "b.example.com" {
		t.Fatalf("Update = %+v, %v", patched, err)
	}

	replaced, err := c.Replace(ctx, "prod", "web", testRoute{ID: "prod/web", Version: "2", Host: "c.example.com"})
	if err != nil || replaced.Host != "c.example.com" {
		t.Fatalf("Replace = %+v, %v", replaced, err)
	}

	items, version, err := c.List(ctx, "prod")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || version != "10" {
		t.Fatalf("List = %+v, version %s", items, version)
	}

	if err := c.Delete(ctx, "prod", "web"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err = c.Get(ctx, "prod", "web")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		t.Fatalf("Get after delete = %v, want 404 APIError", err)
	}
	if apiErr.Message != "route not found" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

// watchServer streams the given NDJSON frames and then ends the response.
func watchServer(t *testing.T, frames ...string) (*httptest.Server, chan string) {
	t.Helper()
	froms := make(chan string, 16)
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/namespaces/{ns}/routes", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("watch") != "true" {
			http.Error(w, "not a watch", http.StatusBadRequest)
			return
		}
		froms <- req.URL.Query().Get("from")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fl := w.(http.Flusher)
		for _, f := range frames {
			_, _ = io.WriteString(w, f+"\n")
			fl.Flush()
		}
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, froms
}

func TestWatchStream(t *testing.T) {
	srv, froms := watchServer(t,
		`{"type":"ADDED","object":{"id":"prod/web","version":"5","host":"a"}}`,
		`{"type":"MODIFIED","object":{"id":"prod/web","version":"6","host":"b"}}`,
		`{"type":"DELETED","object":{"id":"prod/web","version":"7"}}`,
	)
	c := newTestClient(t, srv.URL)

	sub, err := c.Watch(context.Background(), "prod", "4")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer sub.Cancel()

	if from := <-froms; from != "4" {
		t.Fatalf("from = %q, want 4", from)
	}

	want := []watchcache.EventKind{watchcache.KindAdded, watchcache.KindModified, watchcache.KindDeleted}
	for i, k := range want {
		ev, ok := recv(t, sub)
		if !ok {
			t.Fatalf("stream ended at event %d", i)
		}
		if ev.Kind != k || ev.ID != "prod/web" {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}
	if ev, ok := recv(t, sub); ok {
		t.Fatalf("unexpected trailing event %+v", ev)
	}
	if err := sub.Err(); err != nil {
		t.Fatalf("orderly close reported %v", err)
	}
}

func TestWatchGone(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/namespaces/{ns}/routes", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusGone)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 410, "message": "version 5 is no longer available"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	_, err := c.Watch(context.Background(), "prod", "5")
	if !errors.Is(err, watchcache.ErrCursorExpired) {
		t.Fatalf("Watch 410 = %v, want ErrCursorExpired", err)
	}
}

func TestWatchInStreamGone(t *testing.T) {
	srv, _ := watchServer(t,
		`{"type":"ADDED","object":{"id":"prod/web","version":"5"}}`,
		`{"type":"ERROR","status":{"code":410,"message":"too old"}}`,
	)
	c := newTestClient(t, srv.URL)

	sub, err := c.Watch(context.Background(), "prod", "5")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer sub.Cancel()

	if ev, ok := recv(t, sub); !ok || ev.Kind != watchcache.KindAdded {
		t.Fatalf("first event = %+v ok=%v", ev, ok)
	}
	if _, ok := recv(t, sub); ok {
		t.Fatal("stream should end on in-stream 410")
	}
	if err := sub.Err(); !errors.Is(err, watchcache.ErrCursorExpired) {
		t.Fatalf("Err = %v, want ErrCursorExpired", err)
	}
}

func TestWatchInStreamError(t *testing.T) {
	srv, _ := watchServer(t,
		`{"type":"ERROR","status":{"code":500,"message":"hiccup"}}`,
		`{"type":"ADDED","object":{"id":"prod/web","version":"5"}}`,
	)
	c := newTestClient(t, srv.URL)

	sub, err := c.Watch(context.Background(), "prod", "0")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer sub.Cancel()

	ev, ok := recv(t, sub)
	if !ok || ev.Kind != watchcache.KindError || ev.Err == nil {
		t.Fatalf("error event = %+v ok=%v", ev, ok)
	}
	// a non-410 in-stream error must not end the stream
	if ev, ok := recv(t, sub); !ok || ev.Kind != watchcache.KindAdded {
		t.Fatalf("stream did not continue: %+v ok=%v", ev, ok)
	}
}

func TestWatchUnknownType(t *testing.T) {
	srv, _ := watchServer(t, `{"type":"MUTATED","object":{"id":"prod/web","version":"5"}}`)
	c := newTestClient(t, srv.URL)

	sub, err := c.Watch(context.Background(), "prod", "0")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer sub.Cancel()

	ev, ok := recv(t, sub)
	if !ok || ev.Kind != watchcache.KindUnknown {
		t.Fatalf("event = %+v ok=%v, want KindUnknown", ev, ok)
	}
}

func TestWatchCancel(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/namespaces/{ns}/routes", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"type":"ADDED","object":{"id":"prod/web","version":"5"}}`+"\n")
		w.(http.Flusher).Flush()
		<-req.Context().Done() // hold the stream open
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	sub, err := c.Watch(context.Background(), "prod", "0")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if _, ok := recv(t, sub); !ok {
		t.Fatal("no first event")
	}

	sub.Cancel()
	if _, ok := recv(t, sub); ok {
		t.Fatal("event after Cancel")
	}
	if err := sub.Err(); err != nil {
		t.Fatalf("local cancel reported %v", err)
	}
	sub.Cancel() // idempotent
}

func TestBadObjectInEvent(t *testing.T) {
	srv, _ := watchServer(t, `{"type":"ADDED","object":{"version":"5"}}`)
	c := newTestClient(t, srv.URL)

	sub, err := c.Watch(context.Background(), "prod", "0")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer sub.Cancel()

	ev, ok := recv(t, sub)
	if !ok || ev.Kind != watchcache.KindError || ev.Err == nil {
		t.Fatalf("object without identity delivered as %+v", ev)
	}
}

func TestListEnvelope(t *testing.T) {
	srv, _ := crudServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Create(ctx, "prod", testRoute{ID: fmt.Sprintf("prod/r%d", i), Version: "1"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	items, version, err := c.List(ctx, "prod")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 || version != "10" {
		t.Fatalf("List = %d items, version %s", len(items), version)
	}
}
