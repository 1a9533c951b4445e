package robotscache_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/robotscache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledAlwaysAllows(t *testing.T) {
	c, err := robotscache.New(false, "testbot", 0, nil)
	require.NoError(t, err)
	assert.True(t, c.IsAllowed(context.Background(), "https://example.com/private"))
}

func TestDisallowedPathBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	c, err := robotscache.New(true, "testbot", 10, nil)
	require.NoError(t, err)

	assert.False(t, c.IsAllowed(context.Background(), srv.URL+"/private/page"))
	assert.True(t, c.IsAllowed(context.Background(), srv.URL+"/public/page"))
}

func TestFetchFailureAllowsByDefault(t *testing.T) {
	c, err := robotscache.New(true, "testbot", 10, nil)
	require.NoError(t, err)

	assert.True(t, c.IsAllowed(context.Background(), "http://127.0.0.1:1/unreachable"))
}

func TestCachesAcrossRepeatedCalls(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("User-agent: *\nDisallow: /blocked\n"))
	}))
	defer srv.Close()

	c, err := robotscache.New(true, "testbot", 10, nil)
	require.NoError(t, err)

	c.IsAllowed(context.Background(), srv.URL+"/a")
	c.IsAllowed(context.Background(), srv.URL+"/b")
	c.IsAllowed(context.Background(), srv.URL+"/c")

	assert.Equal(t, 1, hits, "robots.txt should be fetched once per host")
	assert.Equal(t, 1, c.Len())
}
