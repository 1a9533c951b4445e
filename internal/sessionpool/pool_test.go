package sessionpool_test

import (
	"testing"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/sessionpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSessionCreatesAndReuses(t *testing.T) {
	p := sessionpool.New(sessionpool.DefaultOptions(), nil)

	s1, err := p.GetSession()
	require.NoError(t, err)
	require.NotNil(t, s1)

	s2, err := p.GetSession()
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID, "an unused, unretired session should be reused")
	assert.Equal(t, 1, p.Size())
}

func TestNotifyResultRetiresOnRepeatedBlock(t *testing.T) {
	opts := sessionpool.DefaultOptions()
	opts.ErrorScoreThreshold = 1
	p := sessionpool.New(opts, nil)

	s, err := p.GetSession()
	require.NoError(t, err)

	rotate := p.NotifyResult(s, 403, false)
	assert.True(t, rotate, "error score crossing the threshold should signal rotation")
	assert.True(t, s.IsRetired())
}

func TestNotifyResultRetiresImmediatelyWhenRetryOnBlocked(t *testing.T) {
	p := sessionpool.New(sessionpool.DefaultOptions(), nil)
	s, err := p.GetSession()
	require.NoError(t, err)

	rotate := p.NotifyResult(s, 429, true)
	assert.True(t, rotate)
	assert.True(t, s.IsRetired())
}

func TestGetSessionSkipsRetiredSessions(t *testing.T) {
	p := sessionpool.New(sessionpool.DefaultOptions(), nil)
	s1, err := p.GetSession()
	require.NoError(t, err)
	s1.Retire()

	s2, err := p.GetSession()
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID, "a retired session should never be handed out again")
}

func TestMaxUsageCountRetiresSession(t *testing.T) {
	opts := sessionpool.DefaultOptions()
	opts.SessionMaxUsageCount = 1
	p := sessionpool.New(opts, nil)

	s, err := p.GetSession()
	require.NoError(t, err)
	p.NotifyResult(s, 200, false)

	s2, err := p.GetSession()
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, s2.ID, "session past its usage cap should not be reused")
}
