// Package client is the REST collaborator for watchcache: request
// primitives against a namespaced collection plus the watch stream Source
// the watcher consumes.
//
// Paths follow the usual collection scheme:
//
//	/api/v1/namespaces/{ns}/{kind}[/{name}]   namespaced
//	/api/v1/{kind}[/{name}]                   all namespaces
//
// Object payloads are JSON on the wire; List, Get and Watch hand the raw
// payload bytes to the configured codec.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/unkn0wn-root/watchcache"
	"github.com/unkn0wn-root/watchcache/codec"
)

// Config tunes a collection client. BaseURL, Kind and Codec are required.
type Config[V any] struct {
	// BaseURL is the server root, e.g. "https://api.example.com".
	BaseURL string
	// Kind is the plural resource name used in paths, e.g. "routes".
	Kind  string
	Codec codec.Codec[V]

	// HTTPClient overrides the default client. Watch requests hold a
	// response body open indefinitely, so the client must not carry a
	// global timeout.
	HTTPClient *http.Client
	// BearerToken, if set, is sent as an Authorization header.
	BearerToken string
}

type Client[V any] struct {
	base  string
	kind  string
	codec codec.Codec[V]
	http  *http.Client
	token string
}

var _ watchcache.Source = (*Client[struct{}])(nil)

func New[V any](cfg Config[V]) (*Client[V], error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if cfg.Kind == "" {
		return nil, fmt.Errorf("client: kind is required")
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("client: codec is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client[V]{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		kind:  cfg.Kind,
		codec: cfg.Codec,
		http:  hc,
		token: cfg.BearerToken,
	}, nil
}

// APIError is a non-2xx server response. It maps HTTP 410 Gone onto the
// watcher's cursor-expiry signal through errors.Is.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: server returned %d: %s", e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == watchcache.ErrCursorExpired && e.Code == http.StatusGone
}

// listEnvelope is the collection response: the collection version usable
// as a watch cursor plus the raw object payloads.
type listEnvelope struct {
	Version string            `json:"version"`
	Items   []json.RawMessage `json:"items"`
}

// List fetches the whole collection. The returned version is the cursor a
// subsequent watch should resume from; callers priming a store before
// Start typically pass it to a fresh watcher via events or use the client
// directly.
func (c *Client[V]) List(ctx context.Context, namespace string) ([]V, string, error) {
	body, err := c.do(ctx, http.MethodGet, c.path(namespace, ""), nil, nil, "")
	if err != nil {
		return nil, "", err
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, "", fmt.Errorf("client: decode list: %w", err)
	}
	out := make([]V, 0, len(env.Items))
	for _, raw := range env.Items {
		v, err := c.codec.Decode(raw)
		if err != nil {
			return nil, "", fmt.Errorf("client: decode list item: %w", err)
		}
		out = append(out, v)
	}
	return out, env.Version, nil
}

// Get fetches one object. A missing object surfaces as an *APIError with
// Code 404.
func (c *Client[V]) Get(ctx context.Context, namespace, name string) (V, error) {
	var zero V
	body, err := c.do(ctx, http.MethodGet, c.path(namespace, name), nil, nil, "")
	if err != nil {
		return zero, err
	}
	return c.codec.Decode(body)
}

// Create POSTs a new object to the collection and returns the stored state.
func (c *Client[V]) Create(ctx context.Context, namespace string, obj V) (V, error) {
	var zero V
	payload, err := c.codec.Encode(obj)
	if err != nil {
		return zero, err
	}
	body, err := c.do(ctx, http.MethodPost, c.path(namespace, ""), nil, payload, "application/json")
	if err != nil {
		return zero, err
	}
	return c.codec.Decode(body)
}

// Update applies a merge-patch document to one object. Patch construction
// is the caller's business; the bytes go on the wire untouched.
func (c *Client[V]) Update(ctx context.Context, namespace, name string, patch []byte) (V, error) {
	var zero V
	body, err := c.do(ctx, http.MethodPatch, c.path(namespace, name), nil, patch, "application/merge-patch+json")
	if err != nil {
		return zero, err
	}
	return c.codec.Decode(body)
}

// Replace PUTs the full object state.
func (c *Client[V]) Replace(ctx context.Context, namespace, name string, obj V) (V, error) {
	var zero V
	payload, err := c.codec.Encode(obj)
	if err != nil {
		return zero, err
	}
	body, err := c.do(ctx, http.MethodPut, c.path(namespace, name), nil, payload, "application/json")
	if err != nil {
		return zero, err
	}
	return c.codec.Decode(body)
}

// Delete removes one object.
func (c *Client[V]) Delete(ctx context.Context, namespace, name string) error {
	_, err := c.do(ctx, http.MethodDelete, c.path(namespace, name), nil, nil, "")
	return err
}

func (c *Client[V]) path(namespace, name string) string {
	var p string
	if namespace != "" {
		p = "/api/v1/namespaces/" + url.PathEscape(namespace) + "/" + c.kind
	} else {
		p = "/api/v1/" + c.kind
	}
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}

func (c *Client[V]) newRequest(ctx context.Context, method, path string, q url.Values, body []byte, contentType string) (*http.Request, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client[V]) do(ctx context.Context, method, path string, q url.Values, body []byte, contentType string) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, q, body, contentType)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp.StatusCode, data)
	}
	return data, nil
}

// responseError prefers the server's structured {"code","message"} body.
func responseError(code int, body []byte) *APIError {
	var st struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &st); err == nil && st.Message != "" {
		return &APIError{Code: code, Message: st.Message}
	}
	return &APIError{Code: code, Message: strings.TrimSpace(string(body))}
}
