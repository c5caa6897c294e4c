package update

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func releaseServer(t *testing.T, tag string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"tag_name": tag})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newChecker(srv *httptest.Server, dir string) *Checker {
	return &Checker{URL: srv.URL, Client: srv.Client(), CacheDir: dir, MaxAge: time.Hour}
}

func TestCheck_SkippedUnderCI(t *testing.T) {
	t.Setenv("CI", "1")
	var hits atomic.Int32
	c := newChecker(releaseServer(t, "v9.9.9", &hits), t.TempDir())
	latest, newer, err := c.Check(context.Background(), "1.0.0", false)
	require.NoError(t, err)
	assert.Empty(t, latest)
	assert.False(t, newer)
	assert.Zero(t, hits.Load())
}

func TestCheck_FetchesThenUsesCache(t *testing.T) {
	t.Setenv("CI", "")
	var hits atomic.Int32
	dir := t.TempDir()
	c := newChecker(releaseServer(t, "v1.3.0", &hits), dir)

	latest, newer, err := c.Check(context.Background(), "1.2.9", false)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", latest)
	assert.True(t, newer)
	assert.FileExists(t, filepath.Join(dir, cacheFileName))

	_, newer, err = c.Check(context.Background(), "v1.3.0", false)
	require.NoError(t, err)
	assert.False(t, newer)
	assert.Equal(t, int32(1), hits.Load(), "second check is served from cache")
}

func TestCheck_StaleCacheRefetches(t *testing.T) {
	t.Setenv("CI", "")
	var hits atomic.Int32
	dir := t.TempDir()
	b, _ := json.Marshal(cache{LastChecked: time.Now().Add(-48 * time.Hour), Latest: "1.0.0"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), b, 0o600))

	c := newChecker(releaseServer(t, "2.0.0", &hits), dir)
	latest, _, err := c.Check(context.Background(), "1.0.0", false)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", latest)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewer(t *testing.T) {
	n, err := Newer("1.3.0", "1.2.9")
	require.NoError(t, err)
	assert.True(t, n)
	n, err = Newer("1.2.0", "v1.2.1")
	require.NoError(t, err)
	assert.False(t, n)
	n, err = Newer("", "1.0.0")
	require.NoError(t, err)
	assert.False(t, n)
	_, err = Newer("banana", "1.0.0")
	assert.Error(t, err)
}
