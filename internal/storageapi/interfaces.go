// Package storageapi defines the collaborator contract the scheduler core
// talks to: a request provider, a key-value store, and a top-level storage
// client, plus the migration/abort event bus. Spec §6 names these as the
// External Interfaces; nothing in this package knows about HTTP, browsers,
// or any concrete backend — that lives in examples/.
package storageapi

import (
	"context"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// RequestProvider is the request-store side of the collaborator contract
// (spec §6): fetchNextRequest, addRequest, addRequestsBatched,
// reclaimRequest, markRequestHandled, isEmpty, isFinished, handledCount,
// getTotalCount, getPendingCount, deleteRequestLock, drop, name. The task
// pipeline and lifecycle controller depend on this interface, not on
// requestqueue.Manager directly, so a remote-backed provider (e.g. a
// MongoDB-backed queue) can stand in without either caller changing.
type RequestProvider interface {
	FetchNextRequest(ctx context.Context) (*types.Request, *requestqueue.Lock, error)
	AddRequest(ctx context.Context, request *types.Request, forefront bool) requestqueue.AddRequestsResult
	AddRequestsBatched(ctx context.Context, requests []*types.Request, forefront bool) requestqueue.AddRequestsResult
	ReclaimRequest(ctx context.Context, request *types.Request, lock *requestqueue.Lock, forceForefront bool) error
	MarkRequestHandled(ctx context.Context, lock *requestqueue.Lock) error
	DeleteRequestLock(ctx context.Context, lock *requestqueue.Lock) error
	IsEmpty() bool
	IsFinished() bool
	HandledCount() int64
	GetTotalCount() int64
	GetPendingCount() int
	Drop(ctx context.Context) error
	Name() string
}

// KeyValueStore is the per-store side of the contract: open a named store
// (or the default one), and read/write the useState convention (spec §4.8)
// through getAutoSavedValue/persistAutoSavedValue. Every Context in
// internal/types also carries these two operations directly for ad hoc
// GetValue/SetValue use.
type KeyValueStore = types.KeyValueStore

// StatusLevel classifies a SetStatusMessage call (spec §6:
// "setStatusMessage?(message, {level, isStatusMessageTerminal?})").
type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusWarning StatusLevel = "warning"
	StatusError   StatusLevel = "error"
)

// StatusMessageOptions is the optional second argument to SetStatusMessage.
type StatusMessageOptions struct {
	Level                   StatusLevel
	IsStatusMessageTerminal bool
}

// StorageClient is the top-level collaborator: it hands out key-value
// stores, accepts periodic status messages, and purges default storages on
// a fresh run. The crawler always calls Teardown; a client with nothing to
// flush implements it as a no-op, as FileStorageClient does.
type StorageClient interface {
	OpenKeyValueStore(ctx context.Context, idOrName string) (KeyValueStore, error)
	SetStatusMessage(ctx context.Context, message string, opts StatusMessageOptions) error
	Purge(ctx context.Context) error
	Teardown(ctx context.Context) error
}
