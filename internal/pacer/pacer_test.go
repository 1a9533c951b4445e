package pacer_test

import (
	"testing"
	"time"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/pacer"
	"github.com/stretchr/testify/assert"
)

func TestCheckReadyOnFirstFetch(t *testing.T) {
	p := pacer.New(100 * time.Millisecond)
	ready, wait := p.Check("example.com")
	assert.True(t, ready)
	assert.Zero(t, wait)
}

func TestCheckBlocksUntilDelayElapses(t *testing.T) {
	p := pacer.New(100 * time.Millisecond)
	p.MarkFetched("example.com")

	ready, wait := p.Check("example.com")
	assert.False(t, ready)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 100*time.Millisecond)
}

func TestCheckReadyAfterDelayElapses(t *testing.T) {
	p := pacer.New(20 * time.Millisecond)
	p.MarkFetched("example.com")
	time.Sleep(30 * time.Millisecond)

	ready, _ := p.Check("example.com")
	assert.True(t, ready)
}

func TestDomainsAreIndependent(t *testing.T) {
	p := pacer.New(time.Hour)
	p.MarkFetched("a.com")

	ready, _ := p.Check("b.com")
	assert.True(t, ready, "pacing one domain must not affect another")
}

func TestZeroDelayAlwaysReady(t *testing.T) {
	p := pacer.New(0)
	p.MarkFetched("example.com")
	ready, _ := p.Check("example.com")
	assert.True(t, ready)
}
