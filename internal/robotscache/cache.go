// Package robotscache fetches, parses, and caches robots.txt decisions per
// host, bounded to a fixed number of entries.
package robotscache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/temoto/robotstxt"
)

// DefaultMaxEntries matches spec §4.5's bounded cache size.
const DefaultMaxEntries = 1000

// entry caches either a parsed robots.txt or the fact that none is
// available (fetchErr set), so repeated misses don't re-fetch every time.
type entry struct {
	data     *robotstxt.RobotsData
	fetchErr error
}

// Cache answers isAllowed(url, userAgent) from a bounded LRU of parsed
// robots.txt files, one entry per host. Grounded on the teacher's
// engine.RobotsManager (cache-by-domain, allow-on-fetch-failure) but
// replaces its hand-rolled parser and unbounded map with
// temoto/robotstxt (a real parser, matching
// other_examples/digster-scraper's usage) and hashicorp/golang-lru (bounded
// eviction, matching PayRpc-Bitcoin_Sprint_Production_Final_2's
// ResultCache usage), so a long crawl across many hosts can't grow the
// cache without bound.
type Cache struct {
	enabled   bool
	client    *http.Client
	userAgent string
	log       *slog.Logger

	lru *lru.Cache

	// inflight deduplicates concurrent fetches for the same host.
	mu       sync.Mutex
	inflight map[string]*sync.WaitGroup
}

// New creates a Cache. When enabled is false, IsAllowed always returns true
// without ever making a network request.
func New(enabled bool, userAgent string, maxEntries int, log *slog.Logger) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if log == nil {
		log = slog.Default()
	}
	c, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("robotscache: create lru: %w", err)
	}
	return &Cache{
		enabled:   enabled,
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		log:       log.With("component", "robots_cache"),
		lru:       c,
		inflight:  make(map[string]*sync.WaitGroup),
	}, nil
}

// IsAllowed reports whether rawURL may be fetched under the target host's
// robots.txt. A fetch failure is treated as "allowed" — a transient
// robots.txt outage should never block the whole crawl (spec §4.5).
func (c *Cache) IsAllowed(ctx context.Context, rawURL string) bool {
	if !c.enabled {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	data := c.getOrFetch(ctx, u.Scheme, u.Host)
	if data == nil {
		return true
	}

	group := data.FindGroup(c.userAgent)
	if group == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

// CrawlDelay returns the robots.txt crawl-delay directive for host, if any.
func (c *Cache) CrawlDelay(ctx context.Context, scheme, host string) time.Duration {
	data := c.getOrFetch(ctx, scheme, host)
	if data == nil {
		return 0
	}
	group := data.FindGroup(c.userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

func (c *Cache) getOrFetch(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	if v, ok := c.lru.Get(host); ok {
		e := v.(entry)
		return e.data
	}

	c.mu.Lock()
	if wg, inFlight := c.inflight[host]; inFlight {
		c.mu.Unlock()
		wg.Wait()
		if v, ok := c.lru.Get(host); ok {
			return v.(entry).data
		}
		return nil
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.inflight[host] = wg
	c.mu.Unlock()

	data, err := c.fetch(ctx, scheme, host)
	c.lru.Add(host, entry{data: data, fetchErr: err})
	if err != nil {
		c.log.Debug("robots.txt unavailable, allowing by default", "host", host, "error", err)
	}

	c.mu.Lock()
	delete(c.inflight, host)
	c.mu.Unlock()
	wg.Done()

	return data
}

func (c *Cache) fetch(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("robotscache: robots.txt fetch for %s returned %d", host, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return robotstxt.FromBytes(nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return robotstxt.FromBytes(body)
}

// Len returns the current number of cached hosts.
func (c *Cache) Len() int { return c.lru.Len() }
