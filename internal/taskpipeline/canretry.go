package taskpipeline

import (
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawlerr"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// canRetry decides whether request gets another attempt after err, per spec
// §4.7: request.noRetry always wins; non-retryable errors never retry;
// session-error only retries while under maxSessionRotations;
// retry-request always retries regardless of the retry counter; everything
// else retries while retryCount is under the request's effective max.
func canRetry(cfg Config, request *types.Request, err error) bool {
	if request.NoRetry {
		return false
	}

	kind := crawlerr.KindOf(err)

	switch kind {
	case crawlerr.KindNonRetryable:
		return false
	case crawlerr.KindSessionError:
		return request.SessionRotationCount < cfg.MaxSessionRotations
	case crawlerr.KindRetryRequest:
		return true
	default:
		return request.RetryCount < request.EffectiveMaxRetries(cfg.MaxRequestRetries)
	}
}
