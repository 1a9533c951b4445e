package taskpipeline_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawlerr"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/robotscache"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/stats"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/taskpipeline"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) *storageapi.DefaultRequestProvider {
	t.Helper()
	mgr, err := requestqueue.NewManager(nil, requestqueue.NewQueue())
	require.NoError(t, err)
	return storageapi.NewDefaultRequestProvider("default", mgr, "")
}

func seed(t *testing.T, provider *storageapi.DefaultRequestProvider, urls ...string) {
	t.Helper()
	for _, u := range urls {
		req, err := types.NewRequest(u)
		require.NoError(t, err)
		provider.AddRequest(context.Background(), req, false)
	}
}

// drain repeatedly pulls and runs tasks until NextTask reports not-ready,
// up to a safety bound, the same poll-until-drained pattern a real
// autoscale worker would use.
func drain(t *testing.T, p *taskpipeline.Pipeline, maxIterations int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < maxIterations; i++ {
		task, ok := p.NextTask(ctx)
		if !ok {
			if p.IsFinished() {
				return
			}
			time.Sleep(5 * time.Millisecond)
			continue
		}
		_ = task(ctx)
	}
}

func TestHappyPathAllRequestsSucceed(t *testing.T) {
	provider := newProvider(t)
	seed(t, provider, "http://a/1", "http://a/2", "http://a/3")

	cfg := taskpipeline.DefaultConfig()
	var handled int
	cfg.RequestHandler = func(cc *types.Context) error {
		handled++
		return nil
	}

	s := stats.New()
	p := taskpipeline.New(cfg, provider, nil, nil, nil, s, nil, nil, nil, nil)
	drain(t, p, 50)

	assert.Equal(t, 3, handled)
	assert.Equal(t, int64(3), provider.HandledCount())
	assert.Equal(t, int64(3), s.RequestsFinished.Load())
}

func TestFlakyHandlerRetriesThenSucceeds(t *testing.T) {
	provider := newProvider(t)
	seed(t, provider, "http://a/x")

	cfg := taskpipeline.DefaultConfig()
	cfg.MaxRequestRetries = 3
	attempts := 0
	cfg.RequestHandler = func(cc *types.Context) error {
		attempts++
		if attempts <= 2 {
			return crawlerr.New(crawlerr.KindUnknown, "handler", assert.AnError)
		}
		return nil
	}

	s := stats.New()
	p := taskpipeline.New(cfg, provider, nil, nil, nil, s, nil, nil, nil, nil)
	drain(t, p, 50)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(1), s.RequestsFinished.Load())
	hist := s.RetryHistogram()
	assert.Equal(t, int64(1), hist[2])
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	provider := newProvider(t)
	seed(t, provider, "http://a/y")

	cfg := taskpipeline.DefaultConfig()
	cfg.RequestHandler = func(cc *types.Context) error {
		return crawlerr.New(crawlerr.KindNonRetryable, "handler", assert.AnError)
	}
	var failedCalls int
	cfg.FailedRequestHandler = func(cc *types.Context, err error) error {
		failedCalls++
		return nil
	}

	s := stats.New()
	p := taskpipeline.New(cfg, provider, nil, nil, nil, s, nil, nil, nil, nil)
	drain(t, p, 50)

	assert.Equal(t, int64(1), s.RequestsFailed.Load())
	assert.Equal(t, 1, failedCalls)
	assert.Equal(t, int64(1), provider.HandledCount())
}

func TestRobotsDisabledCacheNeverBlocksTheHandler(t *testing.T) {
	provider := newProvider(t)
	seed(t, provider, "http://a/private")

	cfg := taskpipeline.DefaultConfig()
	cfg.RespectRobotsTxt = true // no cache wired in below, so this must be a no-op
	var handlerCalled bool
	cfg.RequestHandler = func(cc *types.Context) error {
		handlerCalled = true
		return nil
	}
	var skipReason taskpipeline.SkipReason
	cfg.OnSkippedRequest = func(req *types.Request, reason taskpipeline.SkipReason) {
		skipReason = reason
	}

	s := stats.New()
	// robots arg is nil: RespectRobotsTxt alone must not be enough to gate
	// a request, the pipeline also requires a configured Cache.
	p := taskpipeline.New(cfg, provider, nil, nil, nil, s, nil, nil, nil, nil)
	drain(t, p, 10)

	assert.True(t, handlerCalled)
	assert.Equal(t, taskpipeline.SkipReason(""), skipReason)
}

func TestRobotsDenyMarksSkippedWithoutCallingHandler(t *testing.T) {
	robotsTxt := `User-agent: *
Disallow: /private`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(robotsTxt))
	}))
	defer srv.Close()

	provider := newProvider(t)
	seed(t, provider, srv.URL+"/private")

	robots, err := robotscache.New(true, "testbot", 10, nil)
	require.NoError(t, err)

	cfg := taskpipeline.DefaultConfig()
	cfg.RespectRobotsTxt = true
	var handlerCalled bool
	cfg.RequestHandler = func(cc *types.Context) error {
		handlerCalled = true
		return nil
	}
	var skipReason taskpipeline.SkipReason
	cfg.OnSkippedRequest = func(req *types.Request, reason taskpipeline.SkipReason) {
		skipReason = reason
	}

	s := stats.New()
	p := taskpipeline.New(cfg, provider, nil, nil, robots, s, nil, nil, nil, nil)
	drain(t, p, 10)

	assert.False(t, handlerCalled)
	assert.Equal(t, taskpipeline.SkipRobotsTxt, skipReason)
	assert.Equal(t, int64(1), provider.HandledCount())
}

func TestMaxRequestsPerCrawlCapsHandledCount(t *testing.T) {
	provider := newProvider(t)
	urls := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		urls = append(urls, "http://a/"+string(rune('a'+i)))
	}
	seed(t, provider, urls...)

	cfg := taskpipeline.DefaultConfig()
	cfg.MaxRequestsPerCrawl = 5
	cfg.RequestHandler = func(cc *types.Context) error { return nil }

	s := stats.New()
	p := taskpipeline.New(cfg, provider, nil, nil, nil, s, nil, nil, nil, nil)
	drain(t, p, 50)

	assert.Equal(t, int64(5), provider.HandledCount())
	assert.True(t, p.IsFinished())
}
