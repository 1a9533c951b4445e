package stats

import "sync"

// defaultStateWarned tracks, process-wide, whether the "multiple crawlers
// sharing the default useState key" warning has already fired — spec §4.8
// wants this logged once per process, not once per crawler.
var (
	defaultStateParticipants sync.Map // crawler id (string) -> struct{}
	defaultStateWarnOnce     sync.Once
)

// StateKey returns the key-value store key for useState, per spec §4.8:
// "CRAWLEE_STATE" plus "_"+id when the crawler has an explicit id.
func StateKey(crawlerID string) string {
	if crawlerID == "" {
		return "CRAWLEE_STATE"
	}
	return "CRAWLEE_STATE_" + crawlerID
}

// RegisterDefaultStateUser records that crawlerID (or "" for "no explicit
// id") is using the shared default state key, firing warn once more than
// one distinct crawler participates.
func RegisterDefaultStateUser(crawlerID string, warn func()) {
	defaultStateParticipants.Store(crawlerID, struct{}{})

	count := 0
	defaultStateParticipants.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count > 1 {
		defaultStateWarnOnce.Do(warn)
	}
}
