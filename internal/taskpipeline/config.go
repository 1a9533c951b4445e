// Package taskpipeline drives a single request through the task pipeline
// state machine (spec §4.6): unprocessed -> request-handler ->
// {done | error-handler -> {done | error}}, with skipped reachable directly
// from unprocessed for robots/depth/strategy/limit rejections.
package taskpipeline

import (
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// SkipReason names why a request was marked handled-not-failed without ever
// reaching the user's request handler.
type SkipReason string

const (
	SkipRobotsTxt SkipReason = "robotsTxt"
	SkipDepth     SkipReason = "depth"
	SkipRedirect  SkipReason = "redirect"
	SkipLimit     SkipReason = "limit"
)

// Config holds the crawler-wide options the pipeline consults on every
// attempt — the subset of spec §6's enumerated CrawlerOptions this package
// owns directly (the rest belong to internal/autoscale, internal/crawler,
// or internal/config).
type Config struct {
	RequestHandler       func(*types.Context) error
	ErrorHandler         func(*types.Context, error) error
	FailedRequestHandler func(*types.Context, error) error
	OnSkippedRequest     func(request *types.Request, reason SkipReason)

	RequestHandlerTimeout time.Duration // default 60s
	InternalTimeout       time.Duration // default max(2x above, 5 min)
	InternalRetries       int           // default 3

	MaxRequestRetries   int // default 3
	MaxSessionRotations int // default 10
	MaxRequestsPerCrawl int // 0 = unbounded
	MaxCrawlDepth       int // 0 = unbounded

	UseSessionPool   bool
	RetryOnBlocked   bool
	RespectRobotsTxt bool

	// KeepAlive forces IsFinished false even once the request provider
	// drains, so the pool idles waiting for AddRequests to feed it more
	// work instead of exiting (spec §6/C8's keepAlive knob).
	KeepAlive bool

	DefaultEnqueueStrategy types.EnqueueStrategy
	SameDomainDelay        time.Duration
}

// DefaultConfig returns the spec's documented defaults (spec §6).
func DefaultConfig() Config {
	handlerTimeout := 60 * time.Second
	internalTimeout := 2 * handlerTimeout
	if internalTimeout < 5*time.Minute {
		internalTimeout = 5 * time.Minute
	}
	return Config{
		RequestHandlerTimeout:  handlerTimeout,
		InternalTimeout:        internalTimeout,
		InternalRetries:        3,
		MaxRequestRetries:      3,
		MaxSessionRotations:    10,
		UseSessionPool:         true,
		DefaultEnqueueStrategy: types.EnqueueStrategyAll,
	}
}
