// Package itemchain runs a scraped Item through a configurable chain of
// field-level transforms before it reaches a Dataset sink — the
// pushData/dataset half of the scheduler core, kept separate from
// internal/taskpipeline. A pushData call appends to an in-memory batch; the
// call that fills the batch also writes it to the Dataset synchronously.
package itemchain

import (
	"log/slog"
	"sync"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// Middleware processes an item and returns the (possibly modified) item.
// Returning a nil item drops it from the chain.
type Middleware interface {
	Name() string
	Process(item *types.Item) (*types.Item, error)
}

// Dataset persists a finished batch of items — storage.Storage's contract,
// referenced here by a narrow local interface so this package doesn't
// depend on any one concrete backend.
type Dataset interface {
	Store(items []*types.Item) error
	Close() error
	Name() string
}

// Chain runs every pushData'd item through its middleware list, then
// batches survivors into Dataset.Store calls. Grounded on the teacher's
// pipeline.Pipeline (middleware chain) fused with engine.storeResults'
// batch-then-flush loop, since pushData here is a direct synchronous call
// from a request handler rather than a channel fed by a separate goroutine.
type Chain struct {
	middlewares []Middleware
	dataset     Dataset
	batchSize   int
	log         *slog.Logger

	mu    sync.Mutex
	batch []*types.Item
}

// New creates a Chain. A nil dataset makes Push only run the middleware
// chain and drop the result, useful for a requestHandler that never calls
// pushData. batchSize <= 0 defaults to 100, matching the teacher's
// Storage.BatchSize default.
func New(dataset Dataset, batchSize int, log *slog.Logger) *Chain {
	if batchSize <= 0 {
		batchSize = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chain{
		dataset:   dataset,
		batchSize: batchSize,
		log:       log.With("component", "item_chain"),
	}
}

// Use appends a middleware to the chain.
func (c *Chain) Use(mw Middleware) *Chain {
	c.middlewares = append(c.middlewares, mw)
	return c
}

// Push runs item through the middleware chain and, if it survives, buffers
// it for the dataset, flushing once the batch reaches batchSize.
func (c *Chain) Push(item *types.Item) error {
	current := item
	for _, mw := range c.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return &types.PipelineError{Stage: mw.Name(), Item: current, Err: err}
		}
		if result == nil {
			c.log.Debug("item dropped", "stage", mw.Name(), "url", item.URL)
			return nil
		}
		current = result
	}

	if c.dataset == nil {
		return nil
	}

	c.mu.Lock()
	c.batch = append(c.batch, current)
	flush := len(c.batch) >= c.batchSize
	var toFlush []*types.Item
	if flush {
		toFlush = c.batch
		c.batch = nil
	}
	c.mu.Unlock()

	if flush {
		return c.dataset.Store(toFlush)
	}
	return nil
}

// Close flushes any partially filled batch and closes the dataset.
func (c *Chain) Close() error {
	c.mu.Lock()
	toFlush := c.batch
	c.batch = nil
	c.mu.Unlock()

	if len(toFlush) > 0 && c.dataset != nil {
		if err := c.dataset.Store(toFlush); err != nil {
			return err
		}
	}
	if c.dataset == nil {
		return nil
	}
	return c.dataset.Close()
}
