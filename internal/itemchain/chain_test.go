package itemchain

import (
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeDataset struct {
	stored [][]*types.Item
	closed bool
}

func (d *fakeDataset) Store(items []*types.Item) error {
	d.stored = append(d.stored, items)
	return nil
}
func (d *fakeDataset) Close() error { d.closed = true; return nil }
func (d *fakeDataset) Name() string { return "fake" }

func TestChainRunsMiddlewareThenBuffersToDataset(t *testing.T) {
	ds := &fakeDataset{}
	c := New(ds, 2, testLogger)
	c.Use(&TrimMiddleware{})

	item := types.NewItem("https://example.com")
	item.Set("title", "  Hello World  ")
	if err := c.Push(item); err != nil {
		t.Fatalf("push error: %v", err)
	}
	if len(ds.stored) != 0 {
		t.Fatal("batch of 1 should not flush yet with batchSize 2")
	}

	item2 := types.NewItem("https://example.com/2")
	if err := c.Push(item2); err != nil {
		t.Fatalf("push error: %v", err)
	}
	if len(ds.stored) != 1 || len(ds.stored[0]) != 2 {
		t.Fatalf("expected one flushed batch of 2, got %v", ds.stored)
	}
	if ds.stored[0][0].GetString("title") != "Hello World" {
		t.Errorf("expected trimmed title, got %q", ds.stored[0][0].GetString("title"))
	}
}

func TestChainCloseFlushesPartialBatch(t *testing.T) {
	ds := &fakeDataset{}
	c := New(ds, 10, testLogger)
	c.Push(types.NewItem("https://example.com/1"))

	if err := c.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if len(ds.stored) != 1 || len(ds.stored[0]) != 1 {
		t.Fatalf("expected partial batch flushed on close, got %v", ds.stored)
	}
	if !ds.closed {
		t.Error("expected dataset Close to be called")
	}
}

func TestChainDroppedItemNeverReachesDataset(t *testing.T) {
	ds := &fakeDataset{}
	c := New(ds, 1, testLogger)
	c.Use(&RequiredFieldsMiddleware{Fields: []string{"title"}})

	item := types.NewItem("https://example.com")
	item.Set("body", "no title here")
	if err := c.Push(item); err != nil {
		t.Fatalf("push error: %v", err)
	}
	if len(ds.stored) != 0 {
		t.Error("item missing a required field must not reach the dataset")
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{Fields: []string{"title"}}

	item1 := types.NewItem("https://example.com")
	item1.Set("title", "Hello")
	result, err := m.Process(item1)
	if err != nil || result == nil {
		t.Error("item with required field should pass")
	}

	item2 := types.NewItem("https://example.com")
	item2.Set("body", "no title")
	result, err = m.Process(item2)
	if result != nil {
		t.Error("item missing required field should be dropped (nil)")
	}
}

func TestRequiredFieldsMiddlewareMinDepthExemptsShallowItems(t *testing.T) {
	m := &RequiredFieldsMiddleware{Fields: []string{"title"}, MinDepth: 1}

	listing := types.NewItem("https://example.com")
	listing.Depth = 0
	result, err := m.Process(listing)
	if err != nil || result == nil {
		t.Error("item shallower than MinDepth should pass regardless of missing fields")
	}

	leaf := types.NewItem("https://example.com/detail")
	leaf.Depth = 1
	result, err = m.Process(leaf)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if result != nil {
		t.Error("item at or past MinDepth missing a required field should be dropped")
	}
}

func TestFingerprintMiddlewareTrimsAndStampsChecksum(t *testing.T) {
	m := NewFingerprintMiddleware()
	item := types.NewItem("https://example.com")
	item.Set("title", "  Hello World  ")

	result, err := m.Process(item)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if result.GetString("title") != "Hello World" {
		t.Errorf("expected trimmed title, got %q", result.GetString("title"))
	}
	if result.Checksum == "" {
		t.Error("expected Checksum to be populated")
	}
}

func TestFingerprintMiddlewareDropsDuplicateContent(t *testing.T) {
	m := NewFingerprintMiddleware()

	item1 := types.NewItem("https://example.com/page1")
	item1.Set("title", "Same Content")
	result, err := m.Process(item1)
	if err != nil || result == nil {
		t.Fatal("first item should pass fingerprinting")
	}

	item2 := types.NewItem("https://example.com/page1-tracking-variant")
	item2.Set("title", "Same Content")
	result, err = m.Process(item2)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if result != nil {
		t.Error("item with identical field content should be dropped as a duplicate")
	}
}

func TestFingerprintMiddlewareKeepsDistinctContent(t *testing.T) {
	m := NewFingerprintMiddleware()

	item1 := types.NewItem("https://example.com/a")
	item1.Set("title", "A")
	if _, err := m.Process(item1); err != nil {
		t.Fatalf("error: %v", err)
	}

	item2 := types.NewItem("https://example.com/b")
	item2.Set("title", "B")
	result, err := m.Process(item2)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if result == nil {
		t.Error("item with different field content should not be treated as a duplicate")
	}
}
