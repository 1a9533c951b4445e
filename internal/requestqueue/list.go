package requestqueue

import (
	"sync"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// List is the static, immutable request source: a fixed slice of seed
// requests that Manager drains into the Queue at the forefront, one at a
// time, until exhausted (spec §4.1 tandem semantics). Unlike Queue, a List
// never grows — AddRequests always targets the Queue.
type List struct {
	mu     sync.Mutex
	items  []*types.Request
	cursor int
}

// NewList wraps a fixed slice of requests as a List.
func NewList(items []*types.Request) *List {
	return &List{items: items}
}

// Next returns the next undrained item, advancing the cursor, or nil if the
// list is exhausted.
func (l *List) Next() *types.Request {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor >= len(l.items) {
		return nil
	}
	item := l.items[l.cursor]
	l.cursor++
	return item
}

// IsExhausted reports whether every item has been drained.
func (l *List) IsExhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor >= len(l.items)
}

// Len returns the total number of items the list was created with.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Remaining returns the count of items not yet drained.
func (l *List) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items) - l.cursor
}

// PutBack reclaims an item that Next() already drained but that failed to
// be admitted into the Queue half of the tandem, so the next Next() call
// hands it out again instead of losing it.
func (l *List) PutBack(item *types.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor == 0 {
		return
	}
	l.cursor--
	l.items[l.cursor] = item
}
