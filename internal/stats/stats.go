// Package stats tracks crawl-wide counters, a retry histogram, and error
// fingerprints, persisted across a process migration.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks crawl statistics for a single crawler run. Grounded on the
// teacher's engine.Stats (atomic counters plus a guarded map for
// per-dimension breakdowns), extended with the retry histogram and error
// fingerprint tracker spec §7/§4.8 name.
type Stats struct {
	RequestsStarted  atomic.Int64
	RequestsFinished atomic.Int64
	RequestsFailed   atomic.Int64

	StartTime time.Time

	mu              sync.Mutex
	retryHistogram  map[int]int64    // retryCount at finish -> count
	errorCounts     map[string]int64 // fingerprint -> count
	handlerDuration time.Duration    // running total, for the mean
	handlerSamples  int64
}

// New creates a Stats with StartTime set to now.
func New() *Stats {
	return &Stats{
		StartTime:      time.Now(),
		retryHistogram: make(map[int]int64),
		errorCounts:    make(map[string]int64),
	}
}

// RecordStart marks the beginning of an attempt.
func (s *Stats) RecordStart() {
	s.RequestsStarted.Add(1)
}

// RecordFinished marks a request as successfully finished, bucketing it
// into the retry histogram by the number of retries it took. Terminal
// failures are counted by RecordFailed instead.
func (s *Stats) RecordFinished(retryCount int, handlerDuration time.Duration) {
	s.RequestsFinished.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryHistogram[retryCount]++
	s.handlerDuration += handlerDuration
	s.handlerSamples++
}

// RecordFailed records a terminal failure and its error fingerprint.
func (s *Stats) RecordFailed(fingerprint string) {
	s.RequestsFailed.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCounts[fingerprint]++
}

// MeanHandlerDuration returns the average request-handler duration across
// every finished request so far.
func (s *Stats) MeanHandlerDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlerSamples == 0 {
		return 0
	}
	return s.handlerDuration / time.Duration(s.handlerSamples)
}

// RetryHistogram returns a copy of the retryCount -> occurrences map.
func (s *Stats) RetryHistogram() map[int]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int64, len(s.retryHistogram))
	for k, v := range s.retryHistogram {
		out[k] = v
	}
	return out
}

// ErrorFingerprint is one entry of TopErrorFingerprints' result.
type ErrorFingerprint struct {
	Fingerprint string
	Count       int64
}

// TopErrorFingerprints returns the n most common error fingerprints,
// descending by count, for the final-stats log line (spec §7).
func (s *Stats) TopErrorFingerprints(n int) []ErrorFingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ErrorFingerprint, 0, len(s.errorCounts))
	for fp, count := range s.errorCounts {
		out = append(out, ErrorFingerprint{Fingerprint: fp, Count: count})
	}
	// Simple insertion sort: error-fingerprint sets are small in practice
	// (bounded by distinct failure modes, not by request volume).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Count > out[j-1].Count; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Snapshot returns a read-only view for persistence and status logging.
type Snapshot struct {
	RequestsStarted     int64
	RequestsFinished    int64
	RequestsFailed      int64
	Elapsed             time.Duration
	MeanHandlerDuration time.Duration
	RetryHistogram      map[int]int64
	TopErrors           []ErrorFingerprint
}

// Snapshot captures the current state for PERSIST_STATE and periodic
// logging.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		RequestsStarted:     s.RequestsStarted.Load(),
		RequestsFinished:    s.RequestsFinished.Load(),
		RequestsFailed:      s.RequestsFailed.Load(),
		Elapsed:             time.Since(s.StartTime),
		MeanHandlerDuration: s.MeanHandlerDuration(),
		RetryHistogram:      s.RetryHistogram(),
		TopErrors:           s.TopErrorFingerprints(3),
	}
}

// Restore loads persisted counters back in, e.g. after a process migration,
// so handledCount on restart equals the stored total (spec §4.8).
func (s *Stats) Restore(snap Snapshot) {
	s.RequestsStarted.Store(snap.RequestsStarted)
	s.RequestsFinished.Store(snap.RequestsFinished)
	s.RequestsFailed.Store(snap.RequestsFailed)

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range snap.RetryHistogram {
		s.retryHistogram[k] = v
	}
	for _, e := range snap.TopErrors {
		s.errorCounts[e.Fingerprint] = e.Count
	}
}
