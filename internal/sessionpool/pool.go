// Package sessionpool manages the pool of Session identities the task
// pipeline fetches with: cookie jars, proxy pinning, and retirement based on
// usage count and error score.
package sessionpool

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
	"github.com/google/uuid"
)

// Rotation selects how nextProxyLocked picks among the pool's healthy proxies, the
// same two strategies as the teacher's ProxyManager.
type Rotation string

const (
	RotationRoundRobin Rotation = "round_robin"
	RotationRandom     Rotation = "random"
)

// Options configures a Pool.
type Options struct {
	MaxPoolSize         int
	SessionMaxUsageCount int
	ErrorScoreThreshold float64
	BlockedStatusCodes  []int
	ProxyURLs           []string
	ProxyRotation       Rotation
}

// DefaultOptions mirrors the teacher's DefaultConfig's proxy/session
// defaults, generalized to the pool's own knobs.
func DefaultOptions() Options {
	return Options{
		MaxPoolSize:          1000,
		SessionMaxUsageCount: 50,
		ErrorScoreThreshold:  3,
		BlockedStatusCodes:   []int{401, 403, 429},
		ProxyRotation:        RotationRoundRobin,
	}
}

type proxyEntry struct {
	url     *url.URL
	healthy atomic.Bool
}

// Pool hands out Sessions to the task pipeline, retiring ones that cross
// their usage cap or error-score threshold and creating replacements
// lazily. Grounded on the teacher's fetcher.SessionManager (cookie jar per
// key) merged with fetcher.ProxyManager (health-tracked rotation), unified
// around the spec's richer Session type.
type Pool struct {
	opts Options
	log  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*types.Session
	order    []string // insertion order, for round-robin proxy pinning

	proxies  []*proxyEntry
	proxyIdx atomic.Int64
}

// New creates a Pool. A nil logger falls back to slog.Default(), the same
// guard the teacher's managers use.
func New(opts Options, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{
		opts:     opts,
		log:      log.With("component", "session_pool"),
		sessions: make(map[string]*types.Session),
	}
	for _, raw := range opts.ProxyURLs {
		u, err := url.Parse(raw)
		if err != nil {
			p.log.Warn("invalid proxy URL", "url", raw, "error", err)
			continue
		}
		entry := &proxyEntry{url: u}
		entry.healthy.Store(true)
		p.proxies = append(p.proxies, entry)
	}
	return p
}

// GetSession returns the oldest usable session, or creates a new one when
// every existing session is retired or exhausted. At MaxPoolSize it first
// evicts the oldest retired session, if any; the new session is added even
// when nothing could be evicted.
func (p *Pool) GetSession() (*types.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range p.order {
		s := p.sessions[id]
		if s.IsUsable(p.opts.ErrorScoreThreshold) {
			return s, nil
		}
	}

	if p.opts.MaxPoolSize > 0 && len(p.sessions) >= p.opts.MaxPoolSize {
		p.evictOneRetiredLocked()
	}

	s, err := types.NewSession(uuid.NewString(), p.opts.SessionMaxUsageCount, p.opts.BlockedStatusCodes)
	if err != nil {
		return nil, fmt.Errorf("sessionpool: create session: %w", err)
	}
	if proxy := p.nextProxyLocked(); proxy != nil {
		s.ProxyURL = proxy.String()
	}
	p.sessions[s.ID] = s
	p.order = append(p.order, s.ID)
	return s, nil
}

// evictOneRetiredLocked drops the oldest retired session to make room for a
// new one, when the pool is at capacity. Caller holds p.mu.
func (p *Pool) evictOneRetiredLocked() {
	for i, id := range p.order {
		if s, ok := p.sessions[id]; ok && s.IsRetired() {
			delete(p.sessions, id)
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// nextProxyLocked picks the next healthy proxy per the configured rotation.
// Caller holds p.mu.
func (p *Pool) nextProxyLocked() *url.URL {
	healthy := make([]*proxyEntry, 0, len(p.proxies))
	for _, e := range p.proxies {
		if e.healthy.Load() {
			healthy = append(healthy, e)
		}
	}
	if len(healthy) == 0 {
		return nil
	}
	if p.opts.ProxyRotation == RotationRandom {
		return healthy[rand.Intn(len(healthy))].url
	}
	idx := p.proxyIdx.Add(1) % int64(len(healthy))
	return healthy[idx].url
}

// MarkProxyFailed flags a proxy unhealthy so nextProxyLocked stops handing
// it out, the same health-tracking idiom as ProxyManager.MarkFailed.
func (p *Pool) MarkProxyFailed(proxyURL string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.proxies {
		if e.url.String() == proxyURL {
			e.healthy.Store(false)
			return
		}
	}
}

// NotifyResult updates a session's health score after a response and
// retires it if retryOnBlocked logic calls for it; returns true if the
// caller should rotate onto a new session before its next attempt.
func (p *Pool) NotifyResult(s *types.Session, statusCode int, retryOnBlocked bool) (shouldRotate bool) {
	s.MarkUsed()
	blocked := s.IsBlockedStatusCode(statusCode)
	if blocked {
		s.MarkBad()
		if s.ProxyURL != "" {
			p.MarkProxyFailed(s.ProxyURL)
		}
		if retryOnBlocked {
			s.Retire()
			return true
		}
	} else if statusCode > 0 && statusCode < 400 {
		s.MarkGood()
	}
	if !s.IsUsable(p.opts.ErrorScoreThreshold) {
		s.Retire()
		return true
	}
	return false
}

// NotifyFailure marks s bad after a non-HTTP failure (handler exception,
// timeout) where there is no status code to classify — every failure
// decrements session score regardless of cause (spec §7).
func (p *Pool) NotifyFailure(s *types.Session) (shouldRotate bool) {
	s.MarkUsed()
	s.MarkBad()
	if !s.IsUsable(p.opts.ErrorScoreThreshold) {
		s.Retire()
		return true
	}
	return false
}

// Size returns the number of sessions currently tracked (retired or not).
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// RetireAll forces every session to retire, used on teardown so a resumed
// crawl never reuses stale cookies against a site that may have rotated
// its anti-bot challenge since.
func (p *Pool) RetireAll() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.sessions {
		s.Retire()
	}
}
