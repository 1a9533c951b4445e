package crawler_test

import (
	"context"
	"testing"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawler"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProcessesSeedsAndReachesStopped(t *testing.T) {
	mgr, err := requestqueue.NewManager(nil, requestqueue.NewQueue())
	require.NoError(t, err)
	provider := storageapi.NewDefaultRequestProvider("default", mgr, "")

	var handled int
	opts := crawler.Options{
		ID:                  "test-crawl",
		RequestHandler:      func(cc *types.Context) error { handled++; return nil },
		MinConcurrency:      1,
		MaxConcurrency:      4,
		UseSessionPool:      false,
		MaxRequestsPerCrawl: 0,
	}

	c, err := crawler.New(opts, provider, nil, nil, nil, nil)
	require.NoError(t, err)

	seeds := make([]*types.Request, 0, 3)
	for _, u := range []string{"http://a/1", "http://a/2", "http://a/3"} {
		req, err := types.NewRequest(u)
		require.NoError(t, err)
		seeds = append(seeds, req)
	}
	require.NoError(t, c.AddRequests(context.Background(), seeds))

	err = c.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, handled)
	assert.Equal(t, crawler.StateStopped, c.State())
	assert.Equal(t, int64(3), c.Stats().RequestsFinished.Load())
}

func TestRunRejectsWhileAlreadyRunning(t *testing.T) {
	mgr, err := requestqueue.NewManager(nil, requestqueue.NewQueue())
	require.NoError(t, err)
	provider := storageapi.NewDefaultRequestProvider("default", mgr, "")

	block := make(chan struct{})
	opts := crawler.Options{
		RequestHandler: func(cc *types.Context) error { <-block; return nil },
		MinConcurrency: 1,
		MaxConcurrency: 1,
	}
	c, err := crawler.New(opts, provider, nil, nil, nil, nil)
	require.NoError(t, err)

	req, err := types.NewRequest("http://a/1")
	require.NoError(t, err)
	require.NoError(t, c.AddRequests(context.Background(), []*types.Request{req}))

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	for i := 0; i < 100 && c.State() != crawler.StateRunning; i++ {
		time.Sleep(5 * time.Millisecond)
	}

	err = c.Run(context.Background())
	assert.Error(t, err)

	close(block)
	<-done
}
