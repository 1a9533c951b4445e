package types

import (
	"context"
	"log/slog"
)

// Context is the value passed to user request handlers and error handlers:
// the current request/response pair plus the bound-in operations a handler
// needs (enqueueing links, pushing results, sending an extra request,
// reading/writing crawl-wide state). Operations are function fields rather
// than an interface so the task pipeline can bind each one to its own
// request/session pair without allocating a new concrete type per call,
// the same closure-over-struct idiom the teacher uses for its engine
// callbacks.
type Context struct {
	context.Context

	// Request is the request currently being handled.
	Request *Request

	// Response is the fetch result for Request, nil until after the fetch
	// step of the task pipeline.
	Response *Response

	// Session is the session this attempt is using, nil if useSessionPool
	// is disabled.
	Session *Session

	// ProxyURL is the proxy used for this attempt, if any.
	ProxyURL string

	// Log is scoped to this request (component + URL fields already bound).
	Log *slog.Logger

	// EnqueueLinks adds requests built from absolute URLs, applying the
	// crawler's default enqueue strategy and any per-call overrides.
	EnqueueLinks func(urls []string, opts ...EnqueueOption) error

	// AddRequests enqueues already-built requests directly.
	AddRequests func(requests []*Request) error

	// PushData sends a finished record through the item chain to the
	// dataset.
	PushData func(item *Item) error

	// UseState loads the named shared key-value entry into dst, creating it
	// from defaultValue on first access; see spec's useState/getKeyValueStore.
	UseState func(key string, defaultValue any) (any, error)

	// GetKeyValueStore opens a named (or default) key-value store handle.
	GetKeyValueStore func(idOrName string) (KeyValueStore, error)

	// SendRequest performs an ad hoc fetch outside the normal queue flow,
	// reusing this attempt's session and proxy.
	SendRequest func(req *Request) (*Response, error)
}

// EnqueueOption customizes a single EnqueueLinks call.
type EnqueueOption func(*EnqueueConfig)

// EnqueueConfig holds the resolved options for one EnqueueLinks call.
type EnqueueConfig struct {
	Strategy   EnqueueStrategy
	Forefront  bool
	Label      string
	UserData   map[string]any
	MaxRetries *int
}

// WithStrategy overrides the enqueue strategy for this call.
func WithStrategy(s EnqueueStrategy) EnqueueOption {
	return func(c *EnqueueConfig) { c.Strategy = s }
}

// WithForefront inserts the discovered requests at the front of the queue.
func WithForefront(forefront bool) EnqueueOption {
	return func(c *EnqueueConfig) { c.Forefront = forefront }
}

// WithLabel tags discovered requests' UserData["label"] for dispatch in the
// request handler.
func WithLabel(label string) EnqueueOption {
	return func(c *EnqueueConfig) { c.Label = label }
}

// WithUserData merges extra UserData into every discovered request.
func WithUserData(data map[string]any) EnqueueOption {
	return func(c *EnqueueConfig) { c.UserData = data }
}

// ResolveEnqueueConfig applies opts over the crawler's default strategy.
func ResolveEnqueueConfig(defaultStrategy EnqueueStrategy, opts ...EnqueueOption) EnqueueConfig {
	cfg := EnqueueConfig{Strategy: defaultStrategy}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// KeyValueStore is the minimal persistent key-value handle exposed to user
// code via GetKeyValueStore / UseState, matching spec §6's storage client
// surface.
type KeyValueStore interface {
	GetValue(key string) ([]byte, bool, error)
	SetValue(key string, value []byte) error
	GetAutoSavedValue(key string, defaultValue any) (map[string]any, error)
	PersistAutoSavedValue(key string) error
}
