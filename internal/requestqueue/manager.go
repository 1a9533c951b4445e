// Package requestqueue implements the scheduler's request store: a
// List+Queue tandem behind a Manager that the task pipeline drives via
// FetchNext/Reclaim/MarkHandled/AddRequests.
package requestqueue

import (
	"context"
	"fmt"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// Mode reports which half of the tandem a Manager is currently operating
// in. It degrades from Tandem to QueueOnly once the List drains, and never
// runs ListOnly and Queue logic at the same time.
type Mode int

const (
	ModeTandem Mode = iota
	ModeQueueOnly
	ModeListOnly
)

func (m Mode) String() string {
	switch m {
	case ModeQueueOnly:
		return "queue-only"
	case ModeListOnly:
		return "list-only"
	default:
		return "tandem"
	}
}

// Manager is the single entry point the rest of the scheduler talks to for
// request admission and retrieval, implementing the List+Queue tandem of
// spec §4.1: FetchNext drains the List first, pushing each drained item
// onto the Queue at the forefront so it competes with — and can be
// overtaken by — requests discovered mid-crawl at a higher priority; once
// the List is exhausted the Manager runs Queue-only.
//
// ListOnly exists for the degenerate configuration where no Queue was
// supplied: items are marked handled as they are drained, with no locking
// or reclaim semantics, since nothing ever needs to route back through a
// queue.
type Manager struct {
	mode  Mode
	list  *List
	queue *Queue
}

// NewManager builds a Manager from an optional seed list and an optional
// queue. At least one of list, queue must be non-nil.
func NewManager(list *List, queue *Queue) (*Manager, error) {
	switch {
	case list != nil && queue != nil:
		return &Manager{mode: ModeTandem, list: list, queue: queue}, nil
	case queue != nil:
		return &Manager{mode: ModeQueueOnly, queue: queue}, nil
	case list != nil:
		return &Manager{mode: ModeListOnly, list: list}, nil
	default:
		return nil, fmt.Errorf("requestqueue: at least a list or a queue is required")
	}
}

// Mode reports the manager's current tandem state.
func (m *Manager) Mode() Mode { return m.mode }

// Queue exposes the Manager's dynamic half for checkpointing. Nil if this
// Manager is still ListOnly and has never had AddRequests called on it.
func (m *Manager) Queue() *Queue { return m.queue }

// FetchNext returns the next request to process and a lock to release via
// MarkHandled/Reclaim. In ListOnly mode the returned lock is nil: the item
// has already been irrevocably drained and there is nothing to reclaim.
func (m *Manager) FetchNext(ctx context.Context) (*types.Request, *Lock, error) {
	if m.mode == ModeListOnly {
		req := m.list.Next()
		if req == nil {
			return nil, nil, nil
		}
		return req, nil, nil
	}

	if m.mode == ModeTandem && !m.list.IsExhausted() {
		if req := m.list.Next(); req != nil {
			req.SetForefront(true)
			result := m.queue.AddRequests(ctx, []*types.Request{req}, true)
			if result.ProcessedCount == 0 {
				// Queue admission failed outright: give the item back to
				// the List so the next FetchNext tries it again, rather
				// than dropping it on the floor this round.
				m.list.PutBack(req)
				return nil, nil, nil
			}
		}
		if m.list.IsExhausted() {
			m.mode = ModeQueueOnly
		}
	}

	return m.queue.FetchNext(ctx)
}

// MarkHandled finalizes a request that completed successfully (or
// terminally failed). A no-op in ListOnly mode since the item carries no
// lock.
func (m *Manager) MarkHandled(lock *Lock) {
	if lock == nil {
		return
	}
	m.queue.MarkHandled(lock)
}

// Reclaim returns a request to the queue for another attempt.
func (m *Manager) Reclaim(req *types.Request, lock *Lock, forceForefront bool) {
	if lock == nil {
		// ListOnly drained this already; nothing to do but the caller
		// should not have reached here — ListOnly never retries.
		return
	}
	m.queue.Reclaim(req, lock, forceForefront)
}

// DeleteLock drops a request entirely without reinserting it.
func (m *Manager) DeleteLock(lock *Lock) {
	if lock == nil {
		return
	}
	m.queue.DeleteLock(lock)
}

// AddRequests enqueues newly discovered requests. In ListOnly mode this
// upgrades the manager to Tandem by materializing a Queue on first use,
// since AddRequests always targets the dynamic side.
func (m *Manager) AddRequests(ctx context.Context, requests []*types.Request, forefront bool) AddRequestsResult {
	if m.mode == ModeListOnly {
		m.queue = NewQueue()
		m.mode = ModeTandem
	}
	return m.queue.AddRequests(ctx, requests, forefront)
}

// IsEmpty reports whether there is nothing immediately fetchable.
func (m *Manager) IsEmpty() bool {
	switch m.mode {
	case ModeListOnly:
		return m.list.IsExhausted()
	case ModeQueueOnly:
		return m.queue.IsEmpty()
	default:
		return m.list.IsExhausted() && m.queue.IsEmpty()
	}
}

// IsFinished reports whether the manager will never produce another
// request: empty and nothing in flight.
func (m *Manager) IsFinished() bool {
	switch m.mode {
	case ModeListOnly:
		return m.list.IsExhausted()
	case ModeQueueOnly:
		return m.queue.IsFinished()
	default:
		return m.list.IsExhausted() && m.queue.IsFinished()
	}
}

// HandledCount returns the number of requests marked handled so far.
func (m *Manager) HandledCount() int64 {
	if m.queue == nil {
		if m.mode == ModeListOnly {
			return int64(m.list.Len() - m.list.Remaining())
		}
		return 0
	}
	return m.queue.HandledCount()
}

// GetPendingCount returns the number of requests not yet fetched.
func (m *Manager) GetPendingCount() int {
	pending := 0
	if m.list != nil {
		pending += m.list.Remaining()
	}
	if m.queue != nil {
		pending += m.queue.GetPendingCount()
	}
	return pending
}

// GetTotalCount returns the number of requests ever admitted.
func (m *Manager) GetTotalCount() int64 {
	total := int64(0)
	if m.list != nil {
		total += int64(m.list.Len())
	}
	if m.queue != nil {
		total += m.queue.GetTotalCount()
	}
	return total
}

// Close shuts down the underlying queue, if any, unblocking any FetchNext
// callers waiting for work that will never arrive.
func (m *Manager) Close() {
	if m.queue != nil {
		m.queue.Close()
	}
}
