// Package webstalk provides a public SDK for embedding WebStalk as a library.
//
// Example usage:
//
//	crawler := webstalk.NewCrawler(
//	    webstalk.WithConcurrency(5),
//	    webstalk.WithMaxDepth(3),
//	    webstalk.WithOutput("json", "./output"),
//	)
//
//	crawler.OnHTML("h1", func(e *webstalk.Element) {
//	    e.Item.Set("title", e.Text())
//	})
//
//	crawler.OnHTML("a[href]", func(e *webstalk.Element) {
//	    e.Follow(e.Attr("href"))
//	})
//
//	crawler.Start(context.Background(), "https://example.com")
package webstalk

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/examples/httpfetcher"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/config"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawler"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/itemchain"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storage"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// Crawler is the high-level API for using WebStalk as a library. It wraps
// internal/crawler.Crawler, wiring the task-pipeline core to an
// examples/httpfetcher.Fetcher, a file-backed item chain, and a default
// request queue, the same assembly cmd/webstalk builds for the CLI.
type Crawler struct {
	cfg          *config.Config
	logger       *slog.Logger
	htmlRules    map[string]HTMLCallback
	userAgents   []string
	allowedHosts map[string]struct{}

	crw   *crawler.Crawler
	chain *itemchain.Chain
	fetch *httpfetcher.Fetcher
}

// HTMLCallback is called for each element matching a CSS selector.
type HTMLCallback func(e *Element)

// Element represents a matched DOM element in a callback.
type Element struct {
	// Selection is the goquery selection.
	Selection *goquery.Selection

	// Item is the item being built for this page.
	Item *types.Item

	// Response is the page response.
	Response *types.Response

	// NewRequests collects follow-up URLs.
	NewRequests []*types.Request
}

// Text returns the text content of the element.
func (e *Element) Text() string {
	return e.Selection.Text()
}

// Attr returns the value of the given attribute.
func (e *Element) Attr(name string) string {
	val, _ := e.Selection.Attr(name)
	return val
}

// HTML returns the inner HTML of the element.
func (e *Element) HTML() string {
	html, _ := e.Selection.Html()
	return html
}

// Follow adds a URL to be crawled.
func (e *Element) Follow(rawURL string) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return
	}
	e.NewRequests = append(e.NewRequests, req)
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithConcurrency sets the maximum number of concurrent workers.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		c.cfg.Crawler.MaxConcurrency = n
		if c.cfg.Crawler.MinConcurrency > n {
			c.cfg.Crawler.MinConcurrency = n
		}
	}
}

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) Option {
	return func(c *Crawler) { c.cfg.Crawler.MaxCrawlDepth = depth }
}

// WithDelay sets the politeness delay enforced between requests to the same
// domain.
func WithDelay(d time.Duration) Option {
	return func(c *Crawler) { c.cfg.Crawler.SameDomainDelaySecs = int(d.Seconds()) }
}

// WithOutput sets the output format and path.
func WithOutput(format, path string) Option {
	return func(c *Crawler) {
		c.cfg.Storage.Type = format
		c.cfg.Storage.OutputPath = path
	}
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Crawler) { c.userAgents = []string{ua} }
}

// WithAllowedDomains restricts crawling to the given hostnames. Follow-up
// requests discovered by HTML callbacks that resolve to any other host are
// silently dropped.
func WithAllowedDomains(domains ...string) Option {
	return func(c *Crawler) {
		c.allowedHosts = make(map[string]struct{}, len(domains))
		for _, d := range domains {
			c.allowedHosts[strings.ToLower(d)] = struct{}{}
		}
	}
}

// WithProxy enables proxy rotation with the given proxy URLs, handed to the
// session pool the same way the CLI's config-driven run does.
func WithProxy(urls ...string) Option {
	return func(c *Crawler) {
		c.cfg.Proxy.Enabled = true
		c.cfg.Proxy.URLs = urls
	}
}

// WithRobotsRespect enables/disables robots.txt compliance.
func WithRobotsRespect(respect bool) Option {
	return func(c *Crawler) { c.cfg.Crawler.RespectRobotsTxtFile = respect }
}

// WithMaxRequests sets the global request limit for the crawl.
func WithMaxRequests(n int) Option {
	return func(c *Crawler) { c.cfg.Crawler.MaxRequestsPerCrawl = n }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *Crawler) { c.cfg.Logging.Level = "debug" }
}

// NewCrawler creates a new Crawler with the given options.
func NewCrawler(opts ...Option) *Crawler {
	c := &Crawler{
		cfg:       config.DefaultConfig(),
		htmlRules: make(map[string]HTMLCallback),
	}
	for _, opt := range opts {
		opt(c)
	}

	level := slog.LevelInfo
	if c.cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return c
}

// OnHTML registers a callback for elements matching the CSS selector.
func (c *Crawler) OnHTML(selector string, cb HTMLCallback) {
	c.htmlRules[selector] = cb
}

// Start begins crawling from the given seed URLs and blocks until the crawl
// finishes or ctx is cancelled.
func (c *Crawler) Start(ctx context.Context, urls ...string) error {
	dataset, err := storage.NewFileStorage(c.cfg.Storage.Type, c.cfg.Storage.OutputPath, c.logger)
	if err != nil {
		return fmt.Errorf("webstalk: create storage: %w", err)
	}
	c.chain = itemchain.New(dataset, c.cfg.Storage.BatchSize, c.logger)
	c.chain.Use(&itemchain.TrimMiddleware{})

	c.fetch = httpfetcher.NewFetcher(c.cfg.Fetcher, time.Duration(c.cfg.Crawler.RequestHandlerTimeoutSecs)*time.Second, c.userAgents, c.logger)

	opts := crawler.OptionsFromConfig(c.cfg.Crawler)
	opts.ID = "sdk-crawl"
	opts.RequestHandler = c.buildRequestHandler()
	if c.cfg.Proxy.Enabled {
		opts.SessionPoolOptions.ProxyURLs = c.cfg.Proxy.URLs
	}

	storageClient := storageapi.NewFileStorageClient(config.StorageDir(), c.logger)
	manager, err := requestqueue.NewManager(nil, requestqueue.NewQueue())
	if err != nil {
		return fmt.Errorf("webstalk: create request queue: %w", err)
	}
	requests := storageapi.NewDefaultRequestProvider("default", manager, config.StorageDir())

	crw, err := crawler.New(opts, requests, storageClient, c.fetch, c.chain.Push, c.logger)
	if err != nil {
		return fmt.Errorf("webstalk: create crawler: %w", err)
	}
	c.crw = crw

	seeds := make([]*types.Request, 0, len(urls))
	for _, u := range urls {
		req, err := types.NewRequest(u)
		if err != nil {
			c.logger.Warn("seed skipped", "url", u, "reason", err)
			continue
		}
		seeds = append(seeds, req)
	}
	if len(seeds) == 0 && len(urls) > 0 {
		return fmt.Errorf("webstalk: all %d seed(s) were invalid", len(urls))
	}
	if err := c.crw.AddRequests(ctx, seeds); err != nil {
		return fmt.Errorf("webstalk: add seeds: %w", err)
	}

	runErr := c.crw.Run(ctx)
	if err := c.chain.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("webstalk: close item chain: %w", err)
	}
	return runErr
}

// buildRequestHandler turns the registered OnHTML callbacks into a single
// taskpipeline request handler, filtering follow-up requests against
// allowedHosts before handing them to the crawling context.
func (c *Crawler) buildRequestHandler() func(*types.Context) error {
	return func(cc *types.Context) error {
		if len(c.htmlRules) == 0 {
			return nil
		}
		doc, err := cc.Response.Document()
		if err != nil {
			return fmt.Errorf("webstalk: parse document: %w", err)
		}

		var followUps []*types.Request
		for selector, cb := range c.htmlRules {
			doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
				item := types.NewItem(cc.Request.URLString())
				elem := &Element{Selection: sel, Item: item, Response: cc.Response}
				cb(elem)
				followUps = append(followUps, elem.NewRequests...)
				if len(item.Fields) > 0 {
					if err := cc.PushData(item); err != nil {
						c.logger.Warn("push item failed", "url", cc.Request.URLString(), "error", err)
					}
				}
			})
		}

		allowed := c.filterAllowedHosts(followUps)
		if len(allowed) > 0 {
			if err := cc.AddRequests(allowed); err != nil {
				return fmt.Errorf("webstalk: add follow-up requests: %w", err)
			}
		}
		return nil
	}
}

func (c *Crawler) filterAllowedHosts(reqs []*types.Request) []*types.Request {
	if len(c.allowedHosts) == 0 {
		return reqs
	}
	out := make([]*types.Request, 0, len(reqs))
	for _, r := range reqs {
		u, err := url.Parse(r.URLString())
		if err != nil {
			continue
		}
		if _, ok := c.allowedHosts[strings.ToLower(u.Hostname())]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Stop gracefully stops the crawler, honoring Run's configured grace period.
func (c *Crawler) Stop() {
	if c.crw != nil {
		c.crw.Stop()
	}
}

// Pause pauses the crawler.
func (c *Crawler) Pause() {
	if c.crw != nil {
		c.crw.Pause()
	}
}

// Resume resumes a paused crawler.
func (c *Crawler) Resume() {
	if c.crw != nil {
		c.crw.Resume()
	}
}

// Stats returns a snapshot of crawl statistics.
func (c *Crawler) Stats() map[string]any {
	if c.crw == nil {
		return nil
	}
	snap := c.crw.Stats().Snapshot()
	return map[string]any{
		"requests_started":  snap.RequestsStarted,
		"requests_finished": snap.RequestsFinished,
		"requests_failed":   snap.RequestsFailed,
		"elapsed":           snap.Elapsed,
	}
}
