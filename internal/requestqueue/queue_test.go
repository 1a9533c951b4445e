package requestqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRequest(t *testing.T, rawURL string) *types.Request {
	t.Helper()
	r, err := types.NewRequest(rawURL)
	require.NoError(t, err)
	return r
}

func TestQueueFIFOOrdering(t *testing.T) {
	q := requestqueue.NewQueue()
	ctx := context.Background()

	r1 := mustRequest(t, "https://example.com/a")
	r2 := mustRequest(t, "https://example.com/b")
	q.AddRequests(ctx, []*types.Request{r1, r2}, false)

	got1, lock1, err := q.FetchNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, got1.ID)
	q.MarkHandled(lock1)

	got2, lock2, err := q.FetchNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, r2.ID, got2.ID)
	q.MarkHandled(lock2)
}

func TestQueueForefrontJumpsTheLine(t *testing.T) {
	q := requestqueue.NewQueue()
	ctx := context.Background()

	background := mustRequest(t, "https://example.com/background")
	q.AddRequests(ctx, []*types.Request{background}, false)

	urgent := mustRequest(t, "https://example.com/urgent")
	q.AddRequests(ctx, []*types.Request{urgent}, true)

	got, _, err := q.FetchNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, urgent.ID, got.ID, "forefront request should be returned first")
}

func TestQueueDedupSkipsRepeatedUniqueKey(t *testing.T) {
	q := requestqueue.NewQueue()
	ctx := context.Background()

	r1 := mustRequest(t, "https://example.com/page?b=2&a=1")
	r2 := mustRequest(t, "https://example.com/page?a=1&b=2")
	r2.UniqueKey = r1.UniqueKey

	result := q.AddRequests(ctx, []*types.Request{r1, r2}, false)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Len(t, result.AlreadyPresentKeys, 1)
	assert.Equal(t, int64(1), q.GetTotalCount())
}

func TestQueueReclaimPreservesForefront(t *testing.T) {
	q := requestqueue.NewQueue()
	ctx := context.Background()

	older := mustRequest(t, "https://example.com/older")
	q.AddRequests(ctx, []*types.Request{older}, false)

	failed := mustRequest(t, "https://example.com/retry-me")
	failed.SetForefront(true)
	_, lock, err := fetchOne(ctx, q, failed)
	require.NoError(t, err)

	q.Reclaim(failed, lock, false)

	got, _, err := q.FetchNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, failed.ID, got.ID)
}

// fetchOne admits req then immediately fetches and returns it, for tests
// that need a Lock to reclaim without caring which request came out first.
func fetchOne(ctx context.Context, q *requestqueue.Queue, req *types.Request) (*types.Request, *requestqueue.Lock, error) {
	q.AddRequests(ctx, []*types.Request{req}, true)
	return q.FetchNext(ctx)
}

func TestQueueFetchNextBlocksUntilContextCanceled(t *testing.T) {
	q := requestqueue.NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	got, lock, err := q.FetchNext(ctx)
	assert.Nil(t, got)
	assert.Nil(t, lock)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseUnblocksFetchNext(t *testing.T) {
	q := requestqueue.NewQueue()
	done := make(chan struct{})
	go func() {
		got, lock, err := q.FetchNext(context.Background())
		assert.Nil(t, got)
		assert.Nil(t, lock)
		assert.NoError(t, err)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("FetchNext did not unblock after Close")
	}
}

func TestQueueIsFinished(t *testing.T) {
	q := requestqueue.NewQueue()
	ctx := context.Background()
	assert.True(t, q.IsFinished())

	r := mustRequest(t, "https://example.com/only")
	q.AddRequests(ctx, []*types.Request{r}, false)
	assert.False(t, q.IsFinished())

	_, lock, err := q.FetchNext(ctx)
	require.NoError(t, err)
	assert.False(t, q.IsFinished(), "locked-out request still in flight")

	q.MarkHandled(lock)
	assert.True(t, q.IsFinished())
}

func TestQueueSnapshotAndRestoreRoundTrip(t *testing.T) {
	q := requestqueue.NewQueue()
	ctx := context.Background()
	r := mustRequest(t, "https://example.com/persisted")
	q.AddRequests(ctx, []*types.Request{r}, false)

	snap := q.Snapshot()
	require.Len(t, snap, 1)
	hashes := q.ExportSeenHashes()

	restored := requestqueue.NewQueue()
	restored.Restore(snap, hashes)
	assert.Equal(t, 1, restored.GetPendingCount())

	dup := requestqueue.AddRequestsResult{}
	dup = restored.AddRequests(ctx, []*types.Request{mustRequest(t, r.URLString())}, false)
	assert.Equal(t, 0, dup.ProcessedCount, "restored seen-set should reject the same URL again")
}
