package requestqueue_test

import (
	"context"
	"testing"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRequiresListOrQueue(t *testing.T) {
	_, err := requestqueue.NewManager(nil, nil)
	assert.Error(t, err)
}

func TestManagerTandemDrainsListBeforeQueue(t *testing.T) {
	ctx := context.Background()
	seed := mustRequest(t, "https://example.com/seed")
	list := requestqueue.NewList([]*types.Request{seed})
	queue := requestqueue.NewQueue()

	discovered := mustRequest(t, "https://example.com/discovered")
	queue.AddRequests(ctx, []*types.Request{discovered}, false)

	mgr, err := requestqueue.NewManager(list, queue)
	require.NoError(t, err)
	assert.Equal(t, requestqueue.ModeTandem, mgr.Mode())

	got, lock, err := mgr.FetchNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, seed.ID, got.ID, "list item inserted at forefront should win")
	mgr.MarkHandled(lock)

	got2, lock2, err := mgr.FetchNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, discovered.ID, got2.ID)
	mgr.MarkHandled(lock2)

	assert.Equal(t, requestqueue.ModeQueueOnly, mgr.Mode(), "manager should degrade once the list drains")
}

func TestManagerListOnlyNeverLocks(t *testing.T) {
	ctx := context.Background()
	seed := mustRequest(t, "https://example.com/only-in-list")
	mgr, err := requestqueue.NewManager(requestqueue.NewList([]*types.Request{seed}), nil)
	require.NoError(t, err)
	assert.Equal(t, requestqueue.ModeListOnly, mgr.Mode())

	got, lock, err := mgr.FetchNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, seed.ID, got.ID)
	assert.Nil(t, lock)

	mgr.MarkHandled(lock)
	assert.True(t, mgr.IsFinished())
}

func TestManagerQueueOnlyAddRequests(t *testing.T) {
	ctx := context.Background()
	mgr, err := requestqueue.NewManager(nil, requestqueue.NewQueue())
	require.NoError(t, err)
	assert.Equal(t, requestqueue.ModeQueueOnly, mgr.Mode())

	r := mustRequest(t, "https://example.com/x")
	result := mgr.AddRequests(ctx, []*types.Request{r}, false)
	assert.Equal(t, 1, result.ProcessedCount)

	got, lock, err := mgr.FetchNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	mgr.MarkHandled(lock)
	assert.True(t, mgr.IsFinished())
}

func TestManagerListOnlyUpgradesOnAddRequests(t *testing.T) {
	ctx := context.Background()
	seed := mustRequest(t, "https://example.com/seed-only")
	mgr, err := requestqueue.NewManager(requestqueue.NewList([]*types.Request{seed}), nil)
	require.NoError(t, err)

	extra := mustRequest(t, "https://example.com/extra")
	mgr.AddRequests(ctx, []*types.Request{extra}, false)
	assert.Equal(t, requestqueue.ModeTandem, mgr.Mode(), "AddRequests on a list-only manager materializes a queue")
}
