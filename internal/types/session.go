package types

import (
	"net/http/cookiejar"
	"sync"
)

// Session represents a single "identity" the scheduler fetches with: a
// cookie jar plus a usage/health score, the way the teacher's
// fetcher.SessionManager keyed cookie jars per domain but generalized to the
// pool-of-identities model (spec §3, §4.2).
type Session struct {
	mu sync.Mutex

	// ID identifies the session for logging and UserData round-tripping.
	ID string

	// Jar holds cookies accumulated across requests made with this session.
	Jar *cookiejar.Jar

	// UsageCount is the number of requests made with this session so far.
	UsageCount int

	// MaxUsageCount retires the session once UsageCount reaches it. Zero
	// means unlimited.
	MaxUsageCount int

	// ErrorScore accumulates on blocked/error responses and decays on
	// success; a session is retired once it crosses errorScoreThreshold.
	ErrorScore float64

	// BlockedStatusCodes are the HTTP statuses that count as "this session
	// got blocked" for retryOnBlocked handling.
	BlockedStatusCodes []int

	// UserData carries caller-attached session state (e.g. an auth token)
	// across requests that reuse this session.
	UserData map[string]any

	// Retired marks the session as no longer eligible for reuse; once true
	// the pool will not hand it out again and will create a replacement.
	Retired bool

	// ProxyURL is the proxy this session is pinned to, if any. A session
	// and its proxy are retired together.
	ProxyURL string
}

// NewSession creates a session with a fresh cookie jar.
func NewSession(id string, maxUsageCount int, blockedStatusCodes []int) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:                 id,
		Jar:                jar,
		MaxUsageCount:      maxUsageCount,
		BlockedStatusCodes: blockedStatusCodes,
		UserData:           make(map[string]any),
	}, nil
}

// MarkUsed increments the usage counter after a request completes.
func (s *Session) MarkUsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UsageCount++
}

// IsBlockedStatusCode reports whether code is one of this session's
// configured block signals.
func (s *Session) IsBlockedStatusCode(code int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.BlockedStatusCodes {
		if c == code {
			return true
		}
	}
	return false
}

// MarkGood decays the error score on a successful, non-blocked response.
func (s *Session) MarkGood() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrorScore > 0 {
		s.ErrorScore -= 0.5
		if s.ErrorScore < 0 {
			s.ErrorScore = 0
		}
	}
}

// MarkBad raises the error score after a blocked or session-error response.
func (s *Session) MarkBad() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorScore++
}

// IsUsable reports whether the session is still eligible to be handed out:
// not retired, under its usage cap, and under the error threshold.
func (s *Session) IsUsable(errorScoreThreshold float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Retired {
		return false
	}
	if s.MaxUsageCount > 0 && s.UsageCount >= s.MaxUsageCount {
		return false
	}
	return s.ErrorScore < errorScoreThreshold
}

// Retire marks the session as no longer reusable.
func (s *Session) Retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Retired = true
}

// IsRetired reports the retirement flag.
func (s *Session) IsRetired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Retired
}
