// Package crawler implements the lifecycle controller (spec §4.9): it owns
// a single run's storage, session pool, and autoscaled worker pool, and
// drives them through run()/stop()/teardown() the way the teacher's Engine
// drives Start/Stop/Wait, generalized onto the task-pipeline core instead
// of a fixed fetch-parse-store sequence.
package crawler

import (
	"math"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/autoscale"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/config"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/sessionpool"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/taskpipeline"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// Options enumerates spec §6's CrawlerOptions. Zero value plus Resolve
// applies the documented defaults.
type Options struct {
	ID string

	RequestHandler       func(*types.Context) error
	ErrorHandler         func(*types.Context, error) error
	FailedRequestHandler func(*types.Context, error) error
	OnSkippedRequest     func(request *types.Request, reason taskpipeline.SkipReason)

	RequestHandlerTimeoutSecs int // default 60
	MaxRequestRetries         int // default 3
	MaxSessionRotations       int // default 10
	SameDomainDelaySecs       int // default 0

	MaxRequestsPerCrawl  int
	MaxCrawlDepth        int
	MaxRequestsPerMinute int

	MinConcurrency int
	MaxConcurrency int

	KeepAlive bool

	UseSessionPool     bool // default true
	SessionPoolOptions sessionpool.Options

	RetryOnBlocked bool

	RespectRobotsTxtFile   bool
	RobotsTxtFileUserAgent string

	StatusMessageLoggingInterval time.Duration // default 10s
	StatusMessageCallback        func(message string)

	// PurgeRequestQueue mirrors CRAWLEE_PURGE_ON_START: when set, the first
	// Run call on this Crawler purges the storage client's default storages.
	// No request queue is dropped or reopened, and later Run calls purge
	// nothing.
	PurgeRequestQueue bool
}

// Resolve fills in every documented default spec §6 names, leaving
// explicitly set fields untouched.
func Resolve(o Options) Options {
	if o.RequestHandlerTimeoutSecs <= 0 {
		o.RequestHandlerTimeoutSecs = 60
	}
	if o.MaxRequestRetries <= 0 {
		o.MaxRequestRetries = 3
	}
	if o.MaxSessionRotations <= 0 {
		o.MaxSessionRotations = 10
	}
	if o.MinConcurrency <= 0 {
		o.MinConcurrency = autoscale.DefaultOptions().MinConcurrency
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = autoscale.DefaultOptions().MaxConcurrency
	}
	if o.StatusMessageLoggingInterval <= 0 {
		o.StatusMessageLoggingInterval = 10 * time.Second
	}
	if o.RobotsTxtFileUserAgent == "" {
		o.RobotsTxtFileUserAgent = "*"
	}
	return o
}

func (o Options) taskpipelineConfig() taskpipeline.Config {
	cfg := taskpipeline.DefaultConfig()
	cfg.RequestHandler = o.RequestHandler
	cfg.ErrorHandler = o.ErrorHandler
	cfg.FailedRequestHandler = o.FailedRequestHandler
	cfg.OnSkippedRequest = o.OnSkippedRequest
	cfg.RequestHandlerTimeout = time.Duration(o.RequestHandlerTimeoutSecs) * time.Second
	cfg.MaxRequestRetries = o.MaxRequestRetries
	cfg.MaxSessionRotations = o.MaxSessionRotations
	cfg.MaxRequestsPerCrawl = o.MaxRequestsPerCrawl
	cfg.MaxCrawlDepth = o.MaxCrawlDepth
	cfg.UseSessionPool = o.UseSessionPool
	cfg.RetryOnBlocked = o.RetryOnBlocked
	cfg.RespectRobotsTxt = o.RespectRobotsTxtFile
	cfg.SameDomainDelay = time.Duration(o.SameDomainDelaySecs) * time.Second
	cfg.KeepAlive = o.KeepAlive

	// InternalTimeout tracks max(2x handler timeout, 5 min) off whatever
	// RequestHandlerTimeoutSecs this run actually uses, not the package
	// default baked into DefaultConfig().
	cfg.InternalTimeout = 2 * cfg.RequestHandlerTimeout
	if cfg.InternalTimeout < 5*time.Minute {
		cfg.InternalTimeout = 5 * time.Minute
	}
	if override, ok := config.InternalTimeoutOverride(); ok {
		cfg.InternalTimeout = override
	}
	if maxInternalTimeout := time.Duration(math.MaxInt32) * time.Millisecond; cfg.InternalTimeout > maxInternalTimeout {
		cfg.InternalTimeout = maxInternalTimeout
	}
	return cfg
}

// OptionsFromConfig builds an Options from the YAML/env-bound
// config.CrawlerConfig, leaving the Go-value-only fields (handlers,
// SessionPoolOptions, StatusMessageCallback) for the caller to set
// afterward. PurgeRequestQueue is OR'd with config.PurgeOnStart() since
// CRAWLEE_PURGE_ON_START is a process-level override sitting outside the
// viper precedence chain.
func OptionsFromConfig(cfg config.CrawlerConfig) Options {
	return Options{
		RequestHandlerTimeoutSecs:    cfg.RequestHandlerTimeoutSecs,
		MaxRequestRetries:            cfg.MaxRequestRetries,
		MaxSessionRotations:          cfg.MaxSessionRotations,
		SameDomainDelaySecs:          cfg.SameDomainDelaySecs,
		MaxRequestsPerCrawl:          cfg.MaxRequestsPerCrawl,
		MaxCrawlDepth:                cfg.MaxCrawlDepth,
		MaxRequestsPerMinute:         cfg.MaxRequestsPerMinute,
		MinConcurrency:               cfg.MinConcurrency,
		MaxConcurrency:               cfg.MaxConcurrency,
		KeepAlive:                    cfg.KeepAlive,
		UseSessionPool:               cfg.UseSessionPool,
		RetryOnBlocked:               cfg.RetryOnBlocked,
		RespectRobotsTxtFile:         cfg.RespectRobotsTxtFile,
		RobotsTxtFileUserAgent:       cfg.RobotsTxtFileUserAgent,
		StatusMessageLoggingInterval: cfg.StatusMessageLoggingInterval,
		PurgeRequestQueue:            cfg.PurgeRequestQueue || config.PurgeOnStart(),
	}
}

func (o Options) autoscaleOptions() autoscale.Options {
	opts := autoscale.DefaultOptions()
	opts.MinConcurrency = o.MinConcurrency
	opts.MaxConcurrency = o.MaxConcurrency
	opts.MaxTasksPerMinute = o.MaxRequestsPerMinute
	return opts
}

// sessionPoolOptions overlays the caller's (possibly partially populated)
// SessionPoolOptions onto sessionpool.DefaultOptions(), the same
// start-from-package-defaults-then-overlay shape as autoscaleOptions and
// taskpipelineConfig, so a caller that only sets ProxyURLs still gets a
// usable ErrorScoreThreshold and BlockedStatusCodes instead of the zero
// value.
func (o Options) sessionPoolOptions() sessionpool.Options {
	opts := sessionpool.DefaultOptions()
	set := o.SessionPoolOptions
	if set.MaxPoolSize > 0 {
		opts.MaxPoolSize = set.MaxPoolSize
	}
	if set.SessionMaxUsageCount > 0 {
		opts.SessionMaxUsageCount = set.SessionMaxUsageCount
	}
	if set.ErrorScoreThreshold > 0 {
		opts.ErrorScoreThreshold = set.ErrorScoreThreshold
	}
	if len(set.BlockedStatusCodes) > 0 {
		opts.BlockedStatusCodes = set.BlockedStatusCodes
	}
	if len(set.ProxyURLs) > 0 {
		opts.ProxyURLs = set.ProxyURLs
	}
	if set.ProxyRotation != "" {
		opts.ProxyRotation = set.ProxyRotation
	}
	return opts
}
