package workspace

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/leaktrace/internal/types"
)

var repo = types.Repository{Owner: "jane", Name: "tools/../x"}

func TestWith_ReleasesOnSuccess(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	var dir string
	err := m.With(context.Background(), repo, func(_ context.Context, ws *Workspace) error {
		dir = ws.Dir
		assert.DirExists(t, ws.Dir)
		assert.DirExists(t, ws.ScratchDir())
		info, err := os.Stat(ws.Dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
		require.NoError(t, ws.StartScan())
		assert.Equal(t, 1, m.Scanning())
		return nil
	})
	require.NoError(t, err)
	assert.NoDirExists(t, dir)
	assert.Equal(t, 0, m.Live())
	assert.Equal(t, 0, m.Scanning())
}

func TestWith_ReleasesOnError(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	boom := errors.New("clone failed")
	var ws *Workspace
	err := m.With(context.Background(), repo, func(_ context.Context, w *Workspace) error {
		ws = w
		require.NoError(t, os.WriteFile(w.CloneDir(), []byte("partial"), 0o600))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoDirExists(t, ws.Dir)
	assert.Equal(t, Released, ws.State())
}

func TestWith_ReleasesOnPanic(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	var dir string
	assert.Panics(t, func() {
		_ = m.With(context.Background(), repo, func(_ context.Context, w *Workspace) error {
			dir = w.Dir
			require.NoError(t, w.StartScan())
			panic("scanner crashed")
		})
	})
	assert.NoDirExists(t, dir)
	assert.Equal(t, 0, m.Scanning())
	assert.Equal(t, 0, m.Live())
}

func TestWith_ReleasesOnCancellation(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	var dir string
	err := m.With(ctx, repo, func(ctx context.Context, w *Workspace) error {
		dir = w.Dir
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoDirExists(t, dir)

	called := false
	err = m.With(ctx, repo, func(context.Context, *Workspace) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called, "no workspace is acquired once cancelled")
}

func TestWith_UniqueDirectories(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With(context.Background(), repo, func(_ context.Context, w *Workspace) error {
				mu.Lock()
				defer mu.Unlock()
				assert.False(t, seen[w.Dir])
				seen[w.Dir] = true
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 8)
}

func TestStateTransitions(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	ws, err := m.acquire(repo)
	require.NoError(t, err)
	assert.Equal(t, Acquired, ws.State())
	require.NoError(t, ws.StartScan())
	assert.Error(t, ws.StartScan())
	ws.Fail()
	assert.Equal(t, Failed, ws.State())
	assert.Equal(t, 0, m.Scanning())
	require.NoError(t, ws.release())
	require.NoError(t, ws.release())
	assert.ErrorIs(t, ws.StartScan(), ErrReleased)
	assert.Equal(t, "released", ws.State().String())
}
