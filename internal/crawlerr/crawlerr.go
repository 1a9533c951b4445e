// Package crawlerr defines the error-kind taxonomy shared across the
// scheduler: what kind of failure occurred, and what it means for retrying,
// session rotation, and crawl continuation.
package crawlerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/config"
)

// verboseLog is a var, not a direct config.VerboseLog() call, so tests can
// override it without touching the process environment.
var verboseLog = config.VerboseLog

// Kind classifies a failure the way the task pipeline needs to act on it.
// These are kinds, not Go types: a single CrawlError carries one Kind and
// flows through canRetry/IsCritical decisions uniformly.
type Kind int

const (
	// KindUnknown is the zero value; treated like a generic retryable error.
	KindUnknown Kind = iota
	// KindCritical aborts the whole crawl once it propagates out of the pool.
	KindCritical
	// KindNonRetryable ends this request now, no further attempts.
	KindNonRetryable
	// KindSessionError rotates the current session and retries.
	KindSessionError
	// KindRetryRequest forces one more retry, ignoring the retry counter.
	KindRetryRequest
	// KindHandlerTimeout marks a requestHandlerTimeoutMillis expiry.
	KindHandlerTimeout
	// KindUserHandlerOrigin tags an error thrown by user code (errorHandler,
	// failedRequestHandler) so it is never mistaken for an internal fault.
	KindUserHandlerOrigin
	// KindInternalTimeout marks exhaustion of an internal timeout-and-retry.
	KindInternalTimeout
	// KindStorageUnavailable marks terminal storage failure (fetch or
	// mark-handled exhausted retries): fatal for the run.
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindCritical:
		return "critical"
	case KindNonRetryable:
		return "non-retryable"
	case KindSessionError:
		return "session-error"
	case KindRetryRequest:
		return "retry-request"
	case KindHandlerTimeout:
		return "handler-timeout"
	case KindUserHandlerOrigin:
		return "user-handler-origin"
	case KindInternalTimeout:
		return "internal-timeout"
	case KindStorageUnavailable:
		return "storage-unavailable"
	default:
		return "unknown"
	}
}

// Sentinel errors for common failure modes, in the style of
// internal/types/errors.go's var block.
var (
	ErrCrawlStopped   = errors.New("crawl has been stopped")
	ErrQueueClosed    = errors.New("request queue is closed")
	ErrNoSession      = errors.New("no session available")
	ErrLockHeld       = errors.New("request lock already held")
	ErrNotLocked      = errors.New("request is not locked")
	ErrAlreadyHandled = errors.New("request already handled")
)

// CrawlError wraps an underlying error with a Kind and freeform context,
// the same wrapping-struct idiom as types.FetchError / types.PipelineError.
type CrawlError struct {
	Kind    Kind
	Op      string // operation that produced the error, e.g. "fetchNext"
	URL     string
	Err     error
	Retries int // retry count at time of failure, for logging
}

func (e *CrawlError) Error() string {
	detail := fmt.Sprint(e.Err)
	if verboseLog() {
		detail = unwrapChain(e.Err)
	}
	if e.URL != "" {
		return fmt.Sprintf("%s: %s (%s): %s", e.Kind, e.Op, e.URL, detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, detail)
}

// unwrapChain renders every layer of err's Unwrap chain, one per line, for
// CRAWLEE_VERBOSE_LOG — a substitute for the stack trace a panic/recover
// would give, since this package never recovers panics itself.
func unwrapChain(err error) string {
	if err == nil {
		return "<nil>"
	}
	var b strings.Builder
	for err != nil {
		b.WriteString(err.Error())
		next := errors.Unwrap(err)
		if next != nil {
			b.WriteString(" -> ")
		}
		err = next
	}
	return b.String()
}

func (e *CrawlError) Unwrap() error { return e.Err }

// New builds a CrawlError of the given kind.
func New(kind Kind, op string, err error) *CrawlError {
	return &CrawlError{Kind: kind, Op: op, Err: err}
}

// WithURL attaches the request URL to the error, for logging.
func (e *CrawlError) WithURL(url string) *CrawlError {
	e.URL = url
	return e
}

// KindOf extracts the Kind from err if it is (or wraps) a *CrawlError;
// returns KindUnknown otherwise.
func KindOf(err error) Kind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsCritical reports whether err should abort the crawl.
func IsCritical(err error) bool {
	return KindOf(err) == KindCritical
}

// IsUserOrigin reports whether err originated from user-supplied code
// (errorHandler / failedRequestHandler), which must never be mistaken for
// an internal fault per spec §4.7 step 2.
func IsUserOrigin(err error) bool {
	return KindOf(err) == KindUserHandlerOrigin
}

// TagUserOrigin wraps err (if not already tagged) as user-handler-origin.
func TagUserOrigin(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUserOrigin(err) {
		return err
	}
	return New(KindUserHandlerOrigin, op, err)
}
