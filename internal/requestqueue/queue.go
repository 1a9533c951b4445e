package requestqueue

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// pollInterval is how often a blocking FetchNext re-checks the heap; the
// same non-blocking-poll idiom as the teacher's Frontier.Pop, which favors
// a short sleep over a condition variable so Close/ctx cancellation never
// race a Signal.
const pollInterval = 50 * time.Millisecond

// AddRequestsBatchSize is the synchronous chunk size for AddRequests: the
// first N requests of a batch are deduped and enqueued before the call
// returns; the remainder trickle in on a background ticker (spec §4.1).
const AddRequestsBatchSize = 1000

// Lock is the token FetchNext hands out; MarkHandled, Reclaim, and
// DeleteLock all consume one.
type Lock struct {
	requestID string
}

// Queue is the dynamic, heap-backed request store: the teacher's
// engine.Frontier generalized with per-request locking, forefront
// insertion, and background batch admission.
type Queue struct {
	mu       sync.Mutex
	pq       priorityQueue
	locked   map[string]struct{}
	closed   bool
	nextSeq  int64
	nextFore int64

	seen *seenSet

	handledCount int64
	totalCount   int64

	pendingTail int64 // requests awaiting background admission
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	q := &Queue{
		pq:     make(priorityQueue, 0, 1024),
		locked: make(map[string]struct{}),
		seen:   newSeenSet(4096),
	}
	heap.Init(&q.pq)
	return q
}

// AddRequestsResult reports per-batch admission outcome, mirroring the
// storage client's addRequestsBatched contract in spec §6.
type AddRequestsResult struct {
	ProcessedCount     int
	UnprocessedCount   int // requests left for the background drain
	AlreadyPresentKeys []string
}

// AddRequests dedups and enqueues requests, synchronously admitting the
// first AddRequestsBatchSize and handing the remainder to a background
// drain loop, per spec §4.1's batching contract.
func (q *Queue) AddRequests(ctx context.Context, requests []*types.Request, forefront bool) AddRequestsResult {
	head := requests
	tail := []*types.Request(nil)
	if len(requests) > AddRequestsBatchSize {
		head = requests[:AddRequestsBatchSize]
		tail = requests[AddRequestsBatchSize:]
	}

	result := AddRequestsResult{}
	q.mu.Lock()
	for _, r := range head {
		if q.admitLocked(r, forefront) {
			result.ProcessedCount++
		} else {
			result.AlreadyPresentKeys = append(result.AlreadyPresentKeys, r.UniqueKey)
		}
	}
	q.mu.Unlock()

	if len(tail) > 0 {
		result.UnprocessedCount = len(tail)
		q.drainInBackground(tail, forefront)
	}
	return result
}

// drainInBackground admits the overflow of a large AddRequests call on a
// ticker, the same background-goroutine-plus-ticker shape as the teacher's
// engine.autoCheckpoint loop, so a single oversized batch never blocks the
// caller.
func (q *Queue) drainInBackground(tail []*types.Request, forefront bool) {
	atomic.AddInt64(&q.pendingTail, int64(len(tail)))
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		const chunkSize = 200
		for len(tail) > 0 {
			<-ticker.C
			n := chunkSize
			if n > len(tail) {
				n = len(tail)
			}
			chunk := tail[:n]
			tail = tail[n:]

			q.mu.Lock()
			closed := q.closed
			if !closed {
				for _, r := range chunk {
					q.admitLocked(r, forefront)
				}
			}
			q.mu.Unlock()
			atomic.AddInt64(&q.pendingTail, -int64(len(chunk)))
			if closed {
				return
			}
		}
	}()
}

// admitLocked dedups and pushes a single request. Caller holds q.mu.
func (q *Queue) admitLocked(r *types.Request, forefront bool) bool {
	if q.closed {
		return false
	}
	if !q.seen.markSeen(r.UniqueKey) {
		return false
	}
	q.pushLocked(r, forefront)
	atomic.AddInt64(&q.totalCount, 1)
	return true
}

func (q *Queue) pushLocked(r *types.Request, forefront bool) {
	var seq int64
	if forefront {
		q.nextFore--
		seq = q.nextFore
	} else {
		q.nextSeq++
		seq = q.nextSeq
	}
	heap.Push(&q.pq, &pqItem{request: r, seq: seq})
}

// FetchNext blocks until a request is available, the context is canceled,
// or the queue is closed, returning (nil, nil) in the latter two cases. The
// returned Lock must be released via MarkHandled or Reclaim.
func (q *Queue) FetchNext(ctx context.Context) (*types.Request, *Lock, error) {
	for {
		q.mu.Lock()
		for q.pq.Len() > 0 {
			item := heap.Pop(&q.pq).(*pqItem)
			if _, held := q.locked[item.request.ID]; held {
				// Shouldn't happen in practice (a request is removed from
				// the heap while locked), but guard against corruption.
				continue
			}
			q.locked[item.request.ID] = struct{}{}
			q.mu.Unlock()
			return item.request, &Lock{requestID: item.request.ID}, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// MarkHandled releases lock and counts the request as permanently done.
func (q *Queue) MarkHandled(lock *Lock) {
	q.mu.Lock()
	delete(q.locked, lock.requestID)
	q.mu.Unlock()
	atomic.AddInt64(&q.handledCount, 1)
}

// Reclaim releases lock and reinserts r into the queue, at the forefront if
// r requests it (or forceForefront is set, e.g. for the reclaim-after-error
// path).
func (q *Queue) Reclaim(r *types.Request, lock *Lock, forceForefront bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.locked, lock.requestID)
	if q.closed {
		return
	}
	q.pushLocked(r, forceForefront || r.Forefront())
}

// DeleteLock releases lock without reinserting or counting the request as
// handled (used when a request is dropped entirely, e.g. skipped).
func (q *Queue) DeleteLock(lock *Lock) {
	q.mu.Lock()
	delete(q.locked, lock.requestID)
	q.mu.Unlock()
}

// IsEmpty reports whether the queue has no pending, unlocked requests.
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len() == 0
}

// IsFinished reports whether the queue is empty and no requests are
// currently locked out for processing (i.e. nothing left to do, ever).
func (q *Queue) IsFinished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len() == 0 && len(q.locked) == 0 && atomic.LoadInt64(&q.pendingTail) == 0
}

// HandledCount returns the number of requests marked handled so far.
func (q *Queue) HandledCount() int64 { return atomic.LoadInt64(&q.handledCount) }

// GetTotalCount returns the number of requests ever admitted (handled or not).
func (q *Queue) GetTotalCount() int64 { return atomic.LoadInt64(&q.totalCount) }

// GetPendingCount returns the number of requests waiting to be fetched.
func (q *Queue) GetPendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len()
}

// Close stops admitting new requests and reinserting reclaimed ones; queued
// background batches already in flight are abandoned. Requests still in the
// heap can be fetched, and once it is empty FetchNext returns (nil, nil)
// instead of waiting.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Snapshot returns a non-destructive copy of all queued (unlocked) requests,
// used by persistence to write a checkpoint while the crawl keeps running —
// the same non-destructive read the teacher's Frontier.Snapshot gives
// CheckpointManager.Save.
func (q *Queue) Snapshot() []*types.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*types.Request, len(q.pq))
	for i, item := range q.pq {
		out[i] = item.request
	}
	return out
}

// Restore re-admits previously persisted requests and seen-set hashes,
// preserving their relative order by pushing them in slice order as
// non-forefront.
func (q *Queue) Restore(requests []*types.Request, seenHashes []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen.importHashes(seenHashes)
	for _, r := range requests {
		q.pushLocked(r, false)
		atomic.AddInt64(&q.totalCount, 1)
	}
}

// ExportSeenHashes returns the dedup hash set for checkpoint persistence.
func (q *Queue) ExportSeenHashes() []string { return q.seen.export() }
