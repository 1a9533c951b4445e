package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Request is a single work item flowing through the scheduler: a URL plus
// everything the task pipeline needs to decide how, and how many times, to
// attempt it.
type Request struct {
	// ID is a stable identifier, generated once and never recomputed.
	ID string

	// UniqueKey is the dedup key used by the request manager's seen-set.
	// Defaults to the canonicalized URL but callers may override it (e.g.
	// to dedup POST requests by body hash instead of URL).
	UniqueKey string

	// URL is the target to fetch.
	URL *url.URL

	// LoadedURL is the final URL after redirects, set by the task pipeline
	// after a successful fetch. Cleared at the start of every attempt.
	LoadedURL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are case-insensitive on lookup but keep original casing.
	Headers Headers

	// Payload is the request body, if any.
	Payload []byte

	// UserData is free-form state the caller attaches to the request and
	// gets back in the Crawling Context on every attempt.
	UserData map[string]any

	// RetryCount is the number of attempts already made; incremented on
	// each retryable failure, never on session rotation.
	RetryCount int

	// MaxRetries overrides the crawler-wide maxRequestRetries for this
	// request specifically. Nil means "use the crawler default".
	MaxRetries *int

	// SessionRotationCount is the number of times a session error has
	// rotated this request onto a new session.
	SessionRotationCount int

	// NoRetry forbids any further attempts regardless of error kind.
	NoRetry bool

	// CrawlDepth is the number of enqueueLinks hops from a seed request.
	CrawlDepth int

	// EnqueueStrategy constrains which post-redirect URLs are acceptable;
	// EnqueueStrategyNone disables the check.
	EnqueueStrategy EnqueueStrategy

	// SkippedReason explains why the request was marked skipped instead of
	// being handled: "robotsTxt", "depth", "redirect", "limit", or a
	// caller-supplied string.
	SkippedReason string

	// State is the current position in the task pipeline state machine.
	State RequestState

	// ErrorMessages accumulates one entry per failed attempt, oldest first.
	ErrorMessages []string

	// CreatedAt is when this request was constructed.
	CreatedAt time.Time
}

// NewRequest creates a Request with sensible defaults, the way
// types.NewRequest did in the teacher, but returning the richer spec
// fields (UniqueKey, State, Headers) instead of a flat priority/fetcher
// pair.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	return &Request{
		ID:        uuid.NewString(),
		UniqueKey: CanonicalizeURL(u),
		URL:       u,
		Method:    http.MethodGet,
		Headers:   NewHeaders(),
		UserData:  make(map[string]any),
		State:     StateUnprocessed,
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the request URL's string form.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the registrable hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}

// EffectiveMaxRetries resolves MaxRetries against the crawler-wide default,
// per spec invariant 2: retryCount <= effectiveMaxRetries.
func (r *Request) EffectiveMaxRetries(crawlerDefault int) int {
	if r.MaxRetries != nil {
		return *r.MaxRetries
	}
	return crawlerDefault
}

// AppendError records an attempt failure message.
func (r *Request) AppendError(msg string) {
	r.ErrorMessages = append(r.ErrorMessages, msg)
}

// Forefront reports whether the request's UserData requests forefront
// reinsertion on reclaim (mirrors Crawlee's userData.__crawlee.forefront).
func (r *Request) Forefront() bool {
	v, ok := r.UserData["__crawlee"]
	if !ok {
		return false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	ff, _ := m["forefront"].(bool)
	return ff
}

// SetForefront records the forefront preference in UserData so it survives
// a reclaim round-trip through storage.
func (r *Request) SetForefront(forefront bool) {
	if r.UserData == nil {
		r.UserData = make(map[string]any)
	}
	m, ok := r.UserData["__crawlee"].(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	m["forefront"] = forefront
	r.UserData["__crawlee"] = m
}

// Clone creates a deep copy of the request, the same field-by-field idiom
// as the teacher's Request.Clone.
func (r *Request) Clone() *Request {
	clone := *r
	if r.URL != nil {
		u := *r.URL
		clone.URL = &u
	}
	if r.LoadedURL != nil {
		u := *r.LoadedURL
		clone.LoadedURL = &u
	}
	clone.Headers = r.Headers.Clone()
	clone.UserData = make(map[string]any, len(r.UserData))
	for k, v := range r.UserData {
		clone.UserData[k] = v
	}
	clone.Payload = append([]byte(nil), r.Payload...)
	clone.ErrorMessages = append([]string(nil), r.ErrorMessages...)
	if r.MaxRetries != nil {
		mr := *r.MaxRetries
		clone.MaxRetries = &mr
	}
	return &clone
}
