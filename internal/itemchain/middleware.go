package itemchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

// RequiredFieldsMiddleware drops items missing required fields, with the
// requirement relaxed below MinDepth. A crawl's shallow depths are usually
// listing/index pages that legitimately carry fewer fields than the leaf
// pages Fields guards; enforcing Fields at depth 0 would reject every
// listing page the crawl needs to reach those leaves at all.
type RequiredFieldsMiddleware struct {
	Fields []string

	// MinDepth is the item depth at which Fields starts being enforced.
	// Items shallower than this pass through untouched.
	MinDepth int
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(item *types.Item) (*types.Item, error) {
	if item.Depth < m.MinDepth {
		return item, nil
	}
	for _, field := range m.Fields {
		val, ok := item.Get(field)
		if !ok || val == nil {
			return nil, nil
		}
		if s, isStr := val.(string); isStr && s == "" {
			return nil, nil
		}
	}
	return item, nil
}

// TrimMiddleware trims whitespace from all string fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, key := range item.Keys() {
		if s := item.GetString(key); s != "" {
			item.Set(key, strings.TrimSpace(s))
		}
	}
	return item, nil
}

// FingerprintMiddleware stamps item.Checksum with a hash of its field set
// and drops items whose checksum was already seen, folding the teacher's
// separate trim-then-dedup-by-key steps into one pass that also gives the
// Item.Checksum field (declared for dedup, otherwise never populated) an
// actual value. Two items scraped from different URLs — a listing re-fetched
// under a tracking-parameter variant, say — that resolve to the same field
// content collapse to one instead of both reaching the dataset.
type FingerprintMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFingerprintMiddleware builds a FingerprintMiddleware with its own
// seen-set, scoped to one Chain's lifetime.
func NewFingerprintMiddleware() *FingerprintMiddleware {
	return &FingerprintMiddleware{seen: make(map[string]struct{})}
}

func (m *FingerprintMiddleware) Name() string { return "fingerprint" }

func (m *FingerprintMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, key := range item.Keys() {
		if s := item.GetString(key); s != "" {
			item.Set(key, strings.TrimSpace(s))
		}
	}
	item.Checksum = fingerprint(item)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[item.Checksum]; dup {
		return nil, nil
	}
	m.seen[item.Checksum] = struct{}{}
	return item, nil
}

// fingerprint hashes an item's field values in sorted-key order so map
// iteration order never changes the result.
func fingerprint(item *types.Item) string {
	keys := item.Keys()
	sort.Strings(keys)

	h := sha256.New()
	for _, key := range keys {
		val, _ := item.Get(key)
		fmt.Fprintf(h, "%s=%v\n", key, val)
	}
	return hex.EncodeToString(h.Sum(nil))
}
