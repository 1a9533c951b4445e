package taskpipeline

import (
	"context"
	"strings"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawlerr"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// handleError implements the five-step error-handling flow of spec §4.7.
func (p *Pipeline) handleError(ctx context.Context, req *types.Request, lock *requestqueue.Lock, session *types.Session, err error) error {
	// Step 1: append error to request.errorMessages.
	req.AppendError(err.Error())

	if session != nil && p.sessions != nil {
		p.sessions.NotifyFailure(session)
	}

	// Step 2: critical errors propagate and abort the crawl.
	if crawlerr.IsCritical(err) {
		return err
	}

	// Proxy errors are treated as session-error (spec §4.7's closing note).
	if isProxyError(err) {
		err = crawlerr.New(crawlerr.KindSessionError, "proxy", err)
	}

	if canRetry(p.cfg, req, err) {
		return p.retryPath(ctx, req, lock, session, err)
	}

	return p.terminalPath(ctx, req, lock, session, err)
}

// retryPath is spec §4.7 step 3: record, notify the user errorHandler,
// rotate the session on a session-error, then reclaim unless noRetry.
func (p *Pipeline) retryPath(ctx context.Context, req *types.Request, lock *requestqueue.Lock, session *types.Session, err error) error {
	p.log.Warn("retrying after handler error", "url", req.URLString(), "retry", req.RetryCount, "kind", crawlerr.KindOf(err))

	if p.cfg.ErrorHandler != nil {
		cc := p.buildContext(ctx, req, session, "", p.log)
		if userErr := p.cfg.ErrorHandler(cc, err); userErr != nil {
			p.log.Error("errorHandler raised", "error", userErr)
		}
	}

	if crawlerr.KindOf(err) == crawlerr.KindSessionError {
		req.SessionRotationCount++
		if session != nil {
			session.Retire()
		}
	}

	// req.NoRetry is never true here: canRetry already excludes it, sending
	// that case down terminalPath instead.
	req.RetryCount++
	p.requests.ReclaimRequest(ctx, req, lock, req.Forefront())
	return nil
}

// terminalPath is spec §4.7 step 4/5: record the failure, mark handled,
// call the user failedRequestHandler; a non-nil return from that handler is
// a user re-throw and terminates the crawl (spec §7's propagation policy).
func (p *Pipeline) terminalPath(ctx context.Context, req *types.Request, lock *requestqueue.Lock, session *types.Session, err error) error {
	p.stats.RecordFailed(fingerprint(err))
	req.State = types.StateError

	if markErr := p.markHandled(ctx, lock); markErr != nil {
		return markErr
	}

	if p.cfg.FailedRequestHandler == nil {
		return nil
	}

	cc := p.buildContext(ctx, req, session, "", p.log)
	if userErr := p.cfg.FailedRequestHandler(cc, err); userErr != nil {
		p.log.Error("failedRequestHandler re-threw, terminating crawl", "error", userErr)
		return crawlerr.New(crawlerr.KindCritical, "failedRequestHandler", userErr)
	}
	return nil
}

// fingerprint groups an error into the coarse bucket used for the final
// "3 most common error fingerprints" log (spec §7): the error kind plus the
// message of the innermost wrapped error, not the full chain, so transient
// detail added by outer wrappers (a specific URL) doesn't fragment the
// grouping.
func fingerprint(err error) string {
	return crawlerr.KindOf(err).String() + ": " + rootMessage(err)
}

func rootMessage(err error) string {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err.Error()
		}
		inner := u.Unwrap()
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
}

// isProxyError reports whether err looks like a proxy failure by matching
// against known proxy-error substrings, the fingerprint-based detection
// spec §4.7 calls for.
func isProxyError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range proxyErrorSubstrings {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

var proxyErrorSubstrings = []string{
	"proxy",
	"econnrefused",
	"tunnel connection failed",
	"socks",
}
