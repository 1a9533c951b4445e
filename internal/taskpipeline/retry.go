package taskpipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawlerr"
)

// timeoutAndRetry is the generic combinator spec §9 calls for: run op under
// a fresh per-attempt timeout, retrying up to retries additional times on
// timeout or error, applied uniformly to every storage operation rather
// than just fetchNext.
func timeoutAndRetry(ctx context.Context, timeout time.Duration, retries int, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, timeout)
		err := op(opCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return crawlerr.New(crawlerr.KindInternalTimeout, "timeoutAndRetry", fmt.Errorf("exhausted %d retries: %w", retries, lastErr))
}
