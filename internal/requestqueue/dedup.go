package requestqueue

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// seenSet tracks request unique keys that have already been added, so
// AddRequests can report which of a batch were accepted vs. already known.
// Ported from the teacher's engine.Deduplicator, keyed on the already
// canonicalized Request.UniqueKey instead of re-parsing a raw URL.
type seenSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func newSeenSet(estimatedCapacity int) *seenSet {
	return &seenSet{seen: make(map[string]struct{}, estimatedCapacity)}
}

func (d *seenSet) isSeen(uniqueKey string) bool {
	h := hashKey(uniqueKey)
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seen[h]
	return ok
}

// markSeen records uniqueKey and reports whether it was newly added.
func (d *seenSet) markSeen(uniqueKey string) (wasNew bool) {
	h := hashKey(uniqueKey)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[h]; ok {
		return false
	}
	d.seen[h] = struct{}{}
	return true
}

func (d *seenSet) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}

func (d *seenSet) export() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	hashes := make([]string, 0, len(d.seen))
	for h := range d.seen {
		hashes = append(hashes, h)
	}
	return hashes
}

func (d *seenSet) importHashes(hashes []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range hashes {
		d.seen[h] = struct{}{}
	}
}

func hashKey(uniqueKey string) string {
	h := sha256.Sum256([]byte(uniqueKey))
	return hex.EncodeToString(h[:16])
}
