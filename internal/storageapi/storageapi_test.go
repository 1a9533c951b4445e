package storageapi_test

import (
	"context"
	"testing"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T, rawURL string) *types.Request {
	t.Helper()
	req, err := types.NewRequest(rawURL)
	require.NoError(t, err)
	return req
}

func TestDefaultRequestProviderRoundTrip(t *testing.T) {
	mgr, err := requestqueue.NewManager(nil, requestqueue.NewQueue())
	require.NoError(t, err)
	provider := storageapi.NewDefaultRequestProvider("default", mgr, "")

	result := provider.AddRequest(context.Background(), newTestRequest(t, "https://example.com/a"), false)
	assert.Equal(t, 1, result.ProcessedCount)

	req, lock, err := provider.FetchNextRequest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, req)
	require.NotNil(t, lock)

	provider.MarkRequestHandled(lock)
	assert.Equal(t, int64(1), provider.HandledCount())
	assert.True(t, provider.IsFinished())
}

func TestFileKeyValueStoreGetSetValue(t *testing.T) {
	dir := t.TempDir()
	store, err := storageapi.OpenFileKeyValueStore(dir, "")
	require.NoError(t, err)

	_, ok, err := store.GetValue("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetValue("greeting", []byte(`"hello"`)))

	reopened, err := storageapi.OpenFileKeyValueStore(dir, "")
	require.NoError(t, err)
	val, ok, err := reopened.GetValue("greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"hello"`, string(val))
}

func TestFileKeyValueStoreAutoSavedValueSeedsDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := storageapi.OpenFileKeyValueStore(dir, "crawler-state")
	require.NoError(t, err)

	state, err := store.GetAutoSavedValue("CRAWLEE_STATE", map[string]any{"count": float64(0)})
	require.NoError(t, err)
	assert.Equal(t, float64(0), state["count"])

	state2, err := store.GetAutoSavedValue("CRAWLEE_STATE", map[string]any{"count": float64(99)})
	require.NoError(t, err)
	assert.Equal(t, float64(0), state2["count"], "second call should see the already-seeded value, not re-seed")
}

func TestFileStorageClientPurgeRemovesStores(t *testing.T) {
	dir := t.TempDir()
	client := storageapi.NewFileStorageClient(dir, nil)

	store, err := client.OpenKeyValueStore(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, store.SetValue("k", []byte("1")))

	require.NoError(t, client.Purge(context.Background()))

	fresh, err := client.OpenKeyValueStore(context.Background(), "")
	require.NoError(t, err)
	_, ok, err := fresh.GetValue("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEventBusDeliversToSubscriber(t *testing.T) {
	bus := storageapi.NewEventBus()
	ch := bus.Subscribe(storageapi.EventPersistState)

	bus.Emit(storageapi.Event{Type: storageapi.EventPersistState, IsMigrating: true})

	select {
	case e := <-ch:
		assert.True(t, e.IsMigrating)
	default:
		t.Fatal("expected buffered event to be immediately available")
	}
}
