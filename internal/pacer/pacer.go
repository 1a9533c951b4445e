// Package pacer enforces a minimum delay between requests to the same
// domain without ever blocking the goroutine that asks.
package pacer

import (
	"sync"
	"time"
)

// Pacer tracks the last-fetch time per domain. Directly grounded on the
// teacher's scheduler.domainThrottle, but Check never sleeps: it reports how
// long the caller must wait so the task pipeline can reclaim the request at
// the forefront after that delay instead of parking a worker goroutine
// (spec §4.4 — a blocking sleep would hold an autoscale worker slot
// hostage, defeating the point of an autoscaled pool).
type Pacer struct {
	delay time.Duration

	mu        sync.Mutex
	lastFetch map[string]time.Time
}

// New creates a Pacer enforcing delay between fetches to the same domain.
// A zero delay makes Check always report ready.
func New(delay time.Duration) *Pacer {
	return &Pacer{
		delay:     delay,
		lastFetch: make(map[string]time.Time),
	}
}

// Check reports whether domain may be fetched now, and if not, how long
// until it may. Callers that get ready=false must reclaim the request
// rather than call MarkFetched.
func (p *Pacer) Check(domain string) (ready bool, wait time.Duration) {
	if p.delay <= 0 {
		return true, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastFetch[domain]
	if !ok {
		return true, 0
	}
	elapsed := time.Since(last)
	if elapsed >= p.delay {
		return true, 0
	}
	return false, p.delay - elapsed
}

// MarkFetched records that domain was just fetched, resetting its clock.
// Call this only after Check returned ready=true and the fetch is about to
// happen.
func (p *Pacer) MarkFetched(domain string) {
	if p.delay <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastFetch[domain] = time.Now()
}

// Forget drops the recorded last-fetch time for domain, e.g. when a
// crawl-wide reset is requested.
func (p *Pacer) Forget(domain string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.lastFetch, domain)
}
