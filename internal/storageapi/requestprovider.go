package storageapi

import (
	"context"
	"os"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// DefaultRequestProvider adapts requestqueue.Manager to the RequestProvider
// contract, adding drop() (spec §6) and an optional on-disk checkpoint so a
// local run survives a migration signal without any external storage.
type DefaultRequestProvider struct {
	name       string
	manager    *requestqueue.Manager
	checkpoint *requestqueue.CheckpointManager
}

// NewDefaultRequestProvider wraps an already-built Manager. checkpointDir
// may be empty, in which case Drop only closes the manager and Persist is a
// no-op — a pure in-memory provider for tests and short-lived runs.
func NewDefaultRequestProvider(name string, manager *requestqueue.Manager, checkpointDir string) *DefaultRequestProvider {
	p := &DefaultRequestProvider{name: name, manager: manager}
	if checkpointDir != "" {
		p.checkpoint = requestqueue.NewCheckpointManager(checkpointDir)
	}
	return p
}

func (p *DefaultRequestProvider) Name() string { return p.name }

func (p *DefaultRequestProvider) FetchNextRequest(ctx context.Context) (*types.Request, *requestqueue.Lock, error) {
	return p.manager.FetchNext(ctx)
}

func (p *DefaultRequestProvider) AddRequest(ctx context.Context, request *types.Request, forefront bool) requestqueue.AddRequestsResult {
	return p.manager.AddRequests(ctx, []*types.Request{request}, forefront)
}

func (p *DefaultRequestProvider) AddRequestsBatched(ctx context.Context, requests []*types.Request, forefront bool) requestqueue.AddRequestsResult {
	return p.manager.AddRequests(ctx, requests, forefront)
}

func (p *DefaultRequestProvider) ReclaimRequest(ctx context.Context, request *types.Request, lock *requestqueue.Lock, forceForefront bool) error {
	p.manager.Reclaim(request, lock, forceForefront)
	return nil
}

func (p *DefaultRequestProvider) MarkRequestHandled(ctx context.Context, lock *requestqueue.Lock) error {
	p.manager.MarkHandled(lock)
	return nil
}

func (p *DefaultRequestProvider) DeleteRequestLock(ctx context.Context, lock *requestqueue.Lock) error {
	p.manager.DeleteLock(lock)
	return nil
}

func (p *DefaultRequestProvider) IsEmpty() bool        { return p.manager.IsEmpty() }
func (p *DefaultRequestProvider) IsFinished() bool     { return p.manager.IsFinished() }
func (p *DefaultRequestProvider) HandledCount() int64  { return p.manager.HandledCount() }
func (p *DefaultRequestProvider) GetTotalCount() int64 { return p.manager.GetTotalCount() }
func (p *DefaultRequestProvider) GetPendingCount() int { return p.manager.GetPendingCount() }

// Persist writes a checkpoint of the underlying queue, invoked by the
// lifecycle controller on a migration signal or plain teardown (spec §4.9).
// A no-op if no checkpoint directory was configured, or if the manager has
// never materialized a Queue (pure ListOnly with nothing enqueued yet).
func (p *DefaultRequestProvider) Persist() error {
	if p.checkpoint == nil {
		return nil
	}
	q := p.manager.Queue()
	if q == nil {
		return nil
	}
	return p.checkpoint.Save(q)
}

// Restore reloads a previously written checkpoint into the underlying
// queue, invoked once at process startup so a run interrupted by a
// migration signal resumes where it left off. A no-op if no checkpoint
// directory was configured, nothing was ever saved, or the manager has no
// Queue to restore into.
func (p *DefaultRequestProvider) Restore() error {
	if p.checkpoint == nil || !p.checkpoint.HasCheckpoint() {
		return nil
	}
	q := p.manager.Queue()
	if q == nil {
		return nil
	}
	return p.checkpoint.Load(q)
}

// Drop closes the manager and, if a checkpoint directory is configured,
// removes it — spec §6's storage client "drop" operation, called when
// CRAWLEE_PURGE_ON_START is not "0".
func (p *DefaultRequestProvider) Drop(ctx context.Context) error {
	p.manager.Close()
	if p.checkpoint == nil {
		return nil
	}
	if !p.checkpoint.HasCheckpoint() {
		return nil
	}
	if err := p.checkpoint.Clean(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
