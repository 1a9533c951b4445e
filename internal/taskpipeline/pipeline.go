package taskpipeline

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawlerr"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/pacer"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/robotscache"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/sessionpool"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/stats"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// Pipeline wires together every collaborator a single attempt needs: the
// request store, the session pool, the domain pacer, the robots cache, the
// stats tracker, and the concrete fetcher/item-sink the caller supplies.
// internal/crawler builds one of these and drives it from an
// internal/autoscale.Pool.
type Pipeline struct {
	cfg Config
	log *slog.Logger

	requests storageapi.RequestProvider
	sessions *sessionpool.Pool  // nil when UseSessionPool is false
	pacer    *pacer.Pacer       // nil when SameDomainDelay is zero
	robots   *robotscache.Cache // nil when RespectRobotsTxt is false
	stats    *stats.Stats

	fetcher  Fetcher
	pushData func(item *types.Item) error
	kvStore  func(idOrName string) (types.KeyValueStore, error)
}

// New builds a Pipeline. sessions, domainPacer, and robots may be nil to
// disable the corresponding feature, matching Config's toggles.
func New(
	cfg Config,
	requests storageapi.RequestProvider,
	sessions *sessionpool.Pool,
	domainPacer *pacer.Pacer,
	robots *robotscache.Cache,
	crawlStats *stats.Stats,
	fetcher Fetcher,
	pushData func(item *types.Item) error,
	kvStore func(idOrName string) (types.KeyValueStore, error),
	log *slog.Logger,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		log:      log.With("component", "task_pipeline"),
		requests: requests,
		sessions: sessions,
		pacer:    domainPacer,
		robots:   robots,
		stats:    crawlStats,
		fetcher:  fetcher,
		pushData: pushData,
		kvStore:  kvStore,
	}
}

// IsTaskReady reports whether the pipeline has an immediately fetchable
// request and the maxRequestsPerCrawl cap has not been hit — the
// autoscale.Pool's IsTaskReadyFunction.
func (p *Pipeline) IsTaskReady() bool {
	if p.capReached() {
		return false
	}
	return !p.requests.IsEmpty()
}

// IsFinished reports whether the crawl will never produce another request —
// the autoscale.Pool's IsFinishedFunction.
func (p *Pipeline) IsFinished() bool {
	if p.capReached() {
		return true
	}
	if p.cfg.KeepAlive {
		return false
	}
	return p.requests.IsFinished()
}

func (p *Pipeline) capReached() bool {
	if p.cfg.MaxRequestsPerCrawl <= 0 {
		return false
	}
	return p.requests.HandledCount() >= int64(p.cfg.MaxRequestsPerCrawl)
}

// NextTask implements autoscale.Pool's NextTask signature: fetchNext under
// an internal timeout (spec §4.6 step 1), reporting not-ready rather than
// blocking the caller when there is nothing to do right now.
func (p *Pipeline) NextTask(ctx context.Context) (func(context.Context) error, bool) {
	if p.capReached() {
		return nil, false
	}
	if p.requests.IsEmpty() {
		return nil, false
	}

	var (
		req  *types.Request
		lock *requestqueue.Lock
	)
	err := timeoutAndRetry(ctx, p.cfg.InternalTimeout, p.cfg.InternalRetries, func(opCtx context.Context) error {
		var fetchErr error
		req, lock, fetchErr = p.requests.FetchNextRequest(opCtx)
		return fetchErr
	})
	if err != nil {
		p.log.Error("fetchNextRequest exhausted retries", "error", err)
		return func(context.Context) error {
			return crawlerr.New(crawlerr.KindStorageUnavailable, "fetchNextRequest", err)
		}, true
	}
	if req == nil {
		return nil, false
	}

	return func(taskCtx context.Context) error {
		return p.attempt(taskCtx, req, lock)
	}, true
}
