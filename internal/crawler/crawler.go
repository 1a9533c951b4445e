package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/autoscale"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/pacer"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/robotscache"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/sessionpool"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/stats"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/taskpipeline"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// checkpointer is implemented by request providers that can save and
// restore their pending-request state across a process restart —
// storageapi.DefaultRequestProvider in practice. Declared locally rather
// than added to storageapi.RequestProvider so providers with no durable
// backing of their own (e.g. a Mongo-backed one, already durable by
// construction) aren't forced to grow a no-op method pair.
type checkpointer interface {
	Persist() error
	Restore() error
}

// State mirrors the teacher's engine.State, extended with a dedicated
// Paused value the teacher folds into the same CAS loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Crawler is the C8 lifecycle controller: it owns the request store, the
// session pool, the autoscaled worker pool wrapping a taskpipeline.Pipeline,
// and the storage client's teardown sequence. Grounded on the teacher's
// Engine.Start/Stop/Pause/Resume (atomic.Int32 CAS-guarded State) and
// cmd/webstalk/main.go's signal.Notify wiring, generalized from a
// fixed fetch-parse-store sequence onto the task pipeline's handler-driven
// core.
type Crawler struct {
	opts Options
	log  *slog.Logger

	requests      storageapi.RequestProvider
	storageClient storageapi.StorageClient
	events        *storageapi.EventBus
	sessions      *sessionpool.Pool
	stats         *stats.Stats
	pipeline      *taskpipeline.Pipeline
	pool          *autoscale.Pool

	state      atomic.Int32
	purgedOnce sync.Once

	runCtx    context.Context
	runCancel context.CancelFunc
}

// New builds a Crawler. fetcher and pushData may be nil if the caller's
// requestHandler never calls sendRequest/pushData; kvStore defaults to
// storageClient.OpenKeyValueStore when storageClient is non-nil.
func New(
	opts Options,
	requests storageapi.RequestProvider,
	storageClient storageapi.StorageClient,
	fetcher taskpipeline.Fetcher,
	pushData func(item *types.Item) error,
	log *slog.Logger,
) (*Crawler, error) {
	opts = Resolve(opts)
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "crawler", "id", opts.ID)

	var sessions *sessionpool.Pool
	if opts.UseSessionPool {
		sessions = sessionpool.New(opts.sessionPoolOptions(), log)
	}

	var domainPacer *pacer.Pacer
	if opts.SameDomainDelaySecs > 0 {
		domainPacer = pacer.New(time.Duration(opts.SameDomainDelaySecs) * time.Second)
	}

	var robots *robotscache.Cache
	if opts.RespectRobotsTxtFile {
		r, err := robotscache.New(true, opts.RobotsTxtFileUserAgent, 0, log)
		if err != nil {
			return nil, fmt.Errorf("crawler: create robots cache: %w", err)
		}
		robots = r
	}

	crawlStats := stats.New()

	var kvStore func(idOrName string) (types.KeyValueStore, error)
	if storageClient != nil {
		kvStore = func(idOrName string) (types.KeyValueStore, error) {
			return storageClient.OpenKeyValueStore(context.Background(), idOrName)
		}
	}

	pipeline := taskpipeline.New(
		opts.taskpipelineConfig(),
		requests,
		sessions,
		domainPacer,
		robots,
		crawlStats,
		fetcher,
		pushData,
		kvStore,
		log,
	)

	poolOpts := opts.autoscaleOptions()
	poolOpts.IsTaskReadyFunction = pipeline.IsTaskReady
	poolOpts.IsFinishedFunction = pipeline.IsFinished
	pool := autoscale.New(poolOpts, func(ctx context.Context) (autoscale.TaskFunc, bool) {
		return pipeline.NextTask(ctx)
	}, log)

	c := &Crawler{
		opts:          opts,
		log:           log,
		requests:      requests,
		storageClient: storageClient,
		events:        storageapi.NewEventBus(),
		sessions:      sessions,
		stats:         crawlStats,
		pipeline:      pipeline,
		pool:          pool,
	}

	if cp, ok := requests.(checkpointer); ok {
		if err := cp.Restore(); err != nil {
			log.Warn("restore checkpoint failed", "error", err)
		}
	}

	return c, nil
}

// persistState saves the request provider's pending state, if it supports
// checkpointing, logging rather than failing the caller on error — a
// migration signal or teardown proceeds regardless of whether the
// checkpoint write succeeded.
func (c *Crawler) persistState() {
	cp, ok := c.requests.(checkpointer)
	if !ok {
		return
	}
	if err := cp.Persist(); err != nil {
		c.log.Warn("persist checkpoint failed", "error", err)
	}
}

// State reports the crawler's current lifecycle state.
func (c *Crawler) State() State { return State(c.state.Load()) }

// Stats returns the running statistics tracker.
func (c *Crawler) Stats() *stats.Stats { return c.stats }

// AddRequests seeds the crawl with initial requests, spec §4.9 step 3.
func (c *Crawler) AddRequests(ctx context.Context, requests []*types.Request) error {
	result := c.requests.AddRequestsBatched(ctx, requests, false)
	if result.ProcessedCount == 0 && len(requests) > 0 {
		return fmt.Errorf("crawler: no seed requests were admitted")
	}
	return nil
}

// Run drives the crawl to completion (spec §4.9's run()): rejects a
// concurrent run, purges default storages on this Crawler's first Run when
// PurgeRequestQueue is set (once per Crawler, not once per process), registers
// signal hooks, runs the autoscaled pool, then tears everything down.
func (c *Crawler) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		if State(c.state.Load()) == StateStopped && c.opts.KeepAlive {
			c.state.Store(int32(StateRunning))
		} else {
			return fmt.Errorf("crawler: already running (state %s)", State(c.state.Load()))
		}
	}

	c.purgedOnce.Do(func() {
		if c.opts.PurgeRequestQueue && c.storageClient != nil {
			if err := c.storageClient.Purge(ctx); err != nil {
				c.log.Warn("purge default storages failed", "error", err)
			}
		}
	})

	c.runCtx, c.runCancel = context.WithCancel(ctx)
	defer c.runCancel()

	stopSignals := c.registerSignalHooks()
	defer stopSignals()

	c.log.Info("crawl starting", "min_concurrency", c.opts.MinConcurrency, "max_concurrency", c.opts.MaxConcurrency)

	runErr := c.pool.Run(c.runCtx)

	c.teardown(context.Background(), runErr)
	return runErr
}

// Stop requests a graceful shutdown; Run's in-flight tasks finish, no new
// ones start, matching the teacher's Engine.Stop semantics.
func (c *Crawler) Stop() {
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) ||
		c.state.CompareAndSwap(int32(StatePaused), int32(StateStopping)) {
		c.log.Info("crawl stopping")
		c.events.Emit(storageapi.Event{Type: storageapi.EventAborting})
		if c.runCancel != nil {
			c.runCancel()
		}
	}
}

// Pause suspends the autoscaled pool without tearing anything down.
func (c *Crawler) Pause() {
	if c.state.CompareAndSwap(int32(StateRunning), int32(StatePaused)) {
		c.pool.Pause()
	}
}

// Resume reverses Pause.
func (c *Crawler) Resume() {
	if c.state.CompareAndSwap(int32(StatePaused), int32(StateRunning)) {
		c.pool.Resume()
	}
}

// teardown is spec §4.9's final step: persist state, stop the session
// pool, close the event bus, log final statistics, and tear down storage.
func (c *Crawler) teardown(ctx context.Context, runErr error) {
	c.state.Store(int32(StateStopped))

	c.events.Emit(storageapi.Event{Type: storageapi.EventPersistState, IsMigrating: false})
	c.persistState()

	if c.sessions != nil {
		c.sessions.RetireAll()
	}
	c.events.Close()

	snap := c.stats.Snapshot()
	c.log.Info("crawl finished",
		"requests_finished", snap.RequestsFinished,
		"requests_failed", snap.RequestsFailed,
		"elapsed", snap.Elapsed,
		"top_errors", snap.TopErrors,
		"run_error", runErr,
	)

	if c.storageClient == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.storageClient.Teardown(ctx); err != nil {
			c.log.Error("storage teardown failed", "error", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		c.log.Warn("waiting for storage teardown to finish")
		<-done
	}
}
