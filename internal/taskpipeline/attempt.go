package taskpipeline

import (
	"context"
	"errors"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawlerr"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

var errNoHandler = errors.New("no request handler configured")

// attempt runs the per-request state machine's steps 2-10 (spec §4.6); step
// 1 (fetchNext) already happened in NextTask to produce req/lock.
func (p *Pipeline) attempt(ctx context.Context, req *types.Request, lock *requestqueue.Lock) (attemptErr error) {
	reqLog := p.log.With("url", req.URLString(), "depth", req.CrawlDepth, "retry", req.RetryCount)

	var session *types.Session
	defer func() {
		if attemptErr != nil {
			p.release(ctx, req, lock, session)
		}
	}()

	// Step 2: domain pacer. A deferred request is reclaimed in the
	// background after the remaining delay and this slot does nothing —
	// non-blocking, per internal/pacer's design (spec §4.4).
	if p.pacer != nil {
		domain := req.Domain()
		if ready, wait := p.pacer.Check(domain); !ready {
			p.deferForPacing(req, lock, wait)
			lock = nil // ownership moved into the deferred reclaim goroutine
			return nil
		}
		p.pacer.MarkFetched(domain)
	}

	// Step 3: robots policy.
	if p.cfg.RespectRobotsTxt && p.robots != nil {
		if !p.robots.IsAllowed(ctx, req.URLString()) {
			req.NoRetry = true
			return p.markSkipped(ctx, req, lock, SkipRobotsTxt)
		}
	}

	// Step 4: clear loadedUrl, start the stats job.
	req.LoadedURL = nil
	p.stats.RecordStart()
	start := time.Now()

	// Step 5: acquire a session.
	if p.cfg.UseSessionPool && p.sessions != nil {
		s, err := p.sessions.GetSession()
		if err != nil {
			return p.handleError(ctx, req, lock, nil, crawlerr.New(crawlerr.KindSessionError, "getSession", err))
		}
		session = s
	}

	proxyURL := ""
	if session != nil {
		proxyURL = session.ProxyURL
	}

	// Step 6: build the Crawling Context.
	cc := p.buildContext(ctx, req, session, proxyURL, reqLog)

	// Step 7: invoke the user handler under requestHandlerTimeoutMillis.
	req.State = types.StateRequestHandler
	handlerErr := p.runHandler(ctx, cc)

	// Enqueue-strategy post-redirect check (spec §4.6): only meaningful on
	// success, since a failed handler never resolved a loadedUrl worth
	// checking.
	if handlerErr == nil && req.EnqueueStrategy != types.EnqueueStrategyNone && req.LoadedURL != nil {
		if !types.SatisfiesStrategy(req.EnqueueStrategy, req.URL, req.LoadedURL) {
			req.NoRetry = true
			return p.markSkipped(ctx, req, lock, SkipRedirect)
		}
	}

	if handlerErr == nil {
		// Step 8: success.
		if err := p.markHandled(ctx, lock); err != nil {
			return err
		}
		p.stats.RecordFinished(req.RetryCount, time.Since(start))
		if session != nil && p.sessions != nil {
			p.sessions.NotifyResult(session, 200, p.cfg.RetryOnBlocked)
		}
		req.State = types.StateDone
		return nil
	}

	// Step 9: failure -> error-handler.
	return p.handleError(ctx, req, lock, session, handlerErr)
}

// runHandler invokes the user's RequestHandler under requestHandlerTimeoutMillis,
// converting a timeout into a handler-timeout CrawlError (spec §5).
func (p *Pipeline) runHandler(ctx context.Context, cc *types.Context) error {
	if p.cfg.RequestHandler == nil {
		return crawlerr.New(crawlerr.KindCritical, "requestHandler", errNoHandler)
	}

	handlerCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestHandlerTimeout)
	defer cancel()
	cc.Context = handlerCtx

	done := make(chan error, 1)
	go func() {
		done <- p.cfg.RequestHandler(cc)
	}()

	select {
	case err := <-done:
		return err
	case <-handlerCtx.Done():
		return crawlerr.New(crawlerr.KindHandlerTimeout, "requestHandler", handlerCtx.Err()).WithURL(cc.Request.URLString())
	}
}

// deferForPacing schedules a reclaim after wait elapses without blocking
// the current worker slot.
func (p *Pipeline) deferForPacing(req *types.Request, lock *requestqueue.Lock, wait time.Duration) {
	go func() {
		time.Sleep(wait)
		p.requests.ReclaimRequest(context.Background(), req, lock, true)
	}()
}

// markSkipped finalizes a skipped request, either one denied by robots
// before the handler or one that failed the post-redirect strategy check
// after it: mark it handled-not-failed and fire the skip callback (spec
// §4.5/§4.6).
func (p *Pipeline) markSkipped(ctx context.Context, req *types.Request, lock *requestqueue.Lock, reason SkipReason) error {
	p.fireSkip(req, reason)
	if err := p.markHandled(ctx, lock); err != nil {
		return err
	}
	return nil
}

// markHandled wraps markRequestHandled in the internal timeout-and-retry
// combinator; exhaustion is storage-unavailable and terminates the run
// (spec §4.7's "exhaustion during fetch or mark-handled").
func (p *Pipeline) markHandled(ctx context.Context, lock *requestqueue.Lock) error {
	err := timeoutAndRetry(ctx, p.cfg.InternalTimeout, p.cfg.InternalRetries, func(opCtx context.Context) error {
		return p.requests.MarkRequestHandled(opCtx, lock)
	})
	if err != nil {
		return crawlerr.New(crawlerr.KindStorageUnavailable, "markRequestHandled", err)
	}
	return nil
}

// release is the step-10 safety net: drop the lock if some earlier return
// path left it held (every normal path already resolves it via
// markHandled/reclaim, so this only fires on an unexpected early return).
func (p *Pipeline) release(ctx context.Context, req *types.Request, lock *requestqueue.Lock, session *types.Session) {
	if lock != nil {
		p.requests.DeleteRequestLock(ctx, lock)
	}
}
