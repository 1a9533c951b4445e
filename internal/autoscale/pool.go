// Package autoscale runs a resizable worker pool over a task source,
// ramping concurrency between a floor and ceiling while a host-supplied
// resource signal allows it, and capping overall throughput with a token
// bucket.
package autoscale

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

// TaskFunc performs one unit of work. Any non-nil error from a task aborts
// the whole pool, and Run returns that error.
type TaskFunc func(ctx context.Context) error

// Options configures a Pool the way spec §4.3 and the CrawlerOptions'
// autoscaledPoolOptions do.
type Options struct {
	MinConcurrency int
	MaxConcurrency int

	// MaxTasksPerMinute caps total task starts across the pool. Zero means
	// unlimited.
	MaxTasksPerMinute int

	// IsTaskReadyFunction reports whether there is a task ready to run
	// right now; the pool only scales concurrency up while it reports true.
	// Run's loop ends on IsFinishedFunction alone.
	IsTaskReadyFunction func() bool

	// IsFinishedFunction reports whether the pool should stop requesting
	// new tasks because the underlying source is exhausted.
	IsFinishedFunction func() bool

	// SystemStatusFunction reports whether the host has spare
	// CPU/memory/event-loop headroom to justify scaling up; a nil func
	// always allows scaling up to MaxConcurrency.
	SystemStatusFunction func() bool

	// ScaleUpStepRatio/ScaleDownStepRatio control ramp speed, as a fraction
	// of current concurrency (e.g. 0.05 = 5%), same knobs as the spec names.
	ScaleUpStepRatio   float64
	ScaleDownStepRatio float64

	// DesiredConcurrencyRatio is the fraction of current concurrency that
	// must be "busy" before the pool considers scaling up.
	DesiredConcurrencyRatio float64
}

// DefaultOptions matches the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		MinConcurrency:          1,
		MaxConcurrency:          200,
		ScaleUpStepRatio:        0.05,
		ScaleDownStepRatio:      0.05,
		DesiredConcurrencyRatio: 0.9,
	}
}

// Pool runs TaskFunc, supplied one at a time via NextTask, across a
// resizable set of goroutines. Grounded on the teacher's
// engine.Scheduler worker/idleMonitor pair, with conc/pool.ContextPool
// standing in for the hand-rolled WaitGroup so a panicking task can never
// take the pool down silently and a critical error cancels every other
// in-flight task immediately.
type Pool struct {
	opts Options
	log  *slog.Logger

	// NextTask supplies the next unit of work, or (nil, false) if none is
	// ready right now (the caller should back off briefly and retry).
	NextTask func(ctx context.Context) (TaskFunc, bool)

	limiter *rate.Limiter

	concurrency atomic.Int64
	active      atomic.Int64

	pauseMu   sync.Mutex
	paused    bool
	resumeCh  chan struct{}
}

// New creates a Pool. log may be nil.
func New(opts Options, nextTask func(ctx context.Context) (TaskFunc, bool), log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	if opts.MinConcurrency <= 0 {
		opts.MinConcurrency = 1
	}
	if opts.MaxConcurrency < opts.MinConcurrency {
		opts.MaxConcurrency = opts.MinConcurrency
	}

	p := &Pool{
		opts:     opts,
		log:      log.With("component", "autoscaled_pool"),
		NextTask: nextTask,
		resumeCh: make(chan struct{}),
	}
	p.concurrency.Store(int64(opts.MinConcurrency))

	if opts.MaxTasksPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(float64(opts.MaxTasksPerMinute)/60.0), opts.MaxTasksPerMinute)
	}
	return p
}

// Run drives the pool until the task source reports finished, a critical
// error aborts it, or ctx is canceled. It blocks until every in-flight task
// completes.
func (p *Pool) Run(ctx context.Context) error {
	cp := pool.New().WithContext(ctx).WithCancelOnError()

	done := make(chan struct{})
	go p.rampLoop(ctx, cp, done)

	err := cp.Wait()
	close(done)
	return err
}

// rampLoop spawns and retires worker goroutines onto cp as concurrency is
// adjusted, and watches for the finished condition to stop spawning
// altogether. Modeled on the teacher's idleMonitor ticker loop.
func (p *Pool) rampLoop(ctx context.Context, cp *pool.ContextPool, done chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	spawned := int64(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
		}

		if p.isFinished() {
			return
		}

		p.maybeScale()

		target := p.concurrency.Load()
		for spawned < target {
			spawned++
			cp.Go(p.worker(ctx))
		}
	}
}

// worker returns a conc task function that repeatedly pulls and runs tasks
// until the pool is finished or paused-and-aborted.
func (p *Pool) worker(ctx context.Context) func(context.Context) error {
	return func(ctx context.Context) error {
		for {
			p.waitIfPaused(ctx)
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if p.isFinished() {
				return nil
			}

			task, ok := p.NextTask(ctx)
			if !ok {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(50 * time.Millisecond):
				}
				continue
			}

			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					return nil
				}
			}

			p.active.Add(1)
			err := task(ctx)
			p.active.Add(-1)
			if err != nil {
				return err
			}
		}
	}
}

func (p *Pool) isFinished() bool {
	if p.opts.IsFinishedFunction == nil {
		return false
	}
	return p.opts.IsFinishedFunction()
}

func (p *Pool) isTaskReady() bool {
	if p.opts.IsTaskReadyFunction == nil {
		return true
	}
	return p.opts.IsTaskReadyFunction()
}

func (p *Pool) systemHasHeadroom() bool {
	if p.opts.SystemStatusFunction == nil {
		return true
	}
	return p.opts.SystemStatusFunction()
}

// maybeScale adjusts concurrency up or down by its configured step ratio,
// clamped to [MinConcurrency, MaxConcurrency].
func (p *Pool) maybeScale() {
	current := p.concurrency.Load()
	busy := p.active.Load()
	ratio := float64(busy) / float64(current)

	switch {
	case p.isTaskReady() && p.systemHasHeadroom() && ratio >= p.opts.DesiredConcurrencyRatio:
		step := int64(float64(current) * p.opts.ScaleUpStepRatio)
		if step < 1 {
			step = 1
		}
		next := current + step
		if next > int64(p.opts.MaxConcurrency) {
			next = int64(p.opts.MaxConcurrency)
		}
		p.concurrency.Store(next)
	case !p.systemHasHeadroom() && current > int64(p.opts.MinConcurrency):
		step := int64(float64(current) * p.opts.ScaleDownStepRatio)
		if step < 1 {
			step = 1
		}
		next := current - step
		if next < int64(p.opts.MinConcurrency) {
			next = int64(p.opts.MinConcurrency)
		}
		p.concurrency.Store(next)
	}
}

// Pause blocks every worker from pulling new tasks until Resume is called;
// in-flight tasks are left to finish on their own, matching spec §4.8's
// "pause(gracefulShutdownMs)" semantics (the grace timer itself lives in
// internal/crawler, which calls Abort if Pause doesn't settle in time).
func (p *Pool) Pause() {
	p.pauseMu.Lock()
	defer p.pauseMu.Unlock()
	p.paused = true
}

// Resume unblocks workers paused by Pause.
func (p *Pool) Resume() {
	p.pauseMu.Lock()
	defer p.pauseMu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	close(p.resumeCh)
	p.resumeCh = make(chan struct{})
}

func (p *Pool) waitIfPaused(ctx context.Context) {
	p.pauseMu.Lock()
	if !p.paused {
		p.pauseMu.Unlock()
		return
	}
	ch := p.resumeCh
	p.pauseMu.Unlock()

	select {
	case <-ctx.Done():
	case <-ch:
	}
}

// ActiveCount returns the number of tasks currently executing.
func (p *Pool) ActiveCount() int64 { return p.active.Load() }

// Concurrency returns the pool's current target worker count.
func (p *Pool) Concurrency() int64 { return p.concurrency.Load() }
