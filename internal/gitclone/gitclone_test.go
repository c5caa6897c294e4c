package gitclone

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git-upload-pack"); err != nil {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("local clones need git on PATH")
		}
	}
}

func sourceRepo(t *testing.T, commits int) string {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for i := range commits {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte{byte('a' + i)}, 0o644))
		_, err = wt.Add("f.txt")
		require.NoError(t, err)
		_, err = wt.Commit("c", &git.CommitOptions{Author: &object.Signature{Name: "t", Email: "t@x", When: time.Now()}})
		require.NoError(t, err)
	}
	return dir
}

func countCommits(t *testing.T, dir string) int {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	iter, err := repo.Log(&git.LogOptions{})
	require.NoError(t, err)
	n := 0
	_ = iter.ForEach(func(*object.Commit) error { n++; return nil })
	return n
}

func TestClone_FullHistory(t *testing.T) {
	src := sourceRepo(t, 3)
	dst := filepath.Join(t.TempDir(), "repo")

	require.NoError(t, New(Options{Timeout: 10 * time.Second}, nil).Clone(context.Background(), src, dst))
	assert.Equal(t, 3, countCommits(t, dst))
}

func TestClone_EmptyRemote(t *testing.T) {
	requireGit(t)
	remote := t.TempDir()
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), "repo")

	err = New(Options{}, nil).Clone(context.Background(), remote, dst)

	assert.ErrorIs(t, err, ErrEmptyRemote)
}

func TestClone_MissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "repo")
	err := New(Options{}, nil).Clone(context.Background(), filepath.Join(t.TempDir(), "nope"), dst)
	assert.Error(t, err)
}

func TestClone_Cancelled(t *testing.T) {
	src := sourceRepo(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(Options{}, nil).Clone(ctx, src, filepath.Join(t.TempDir(), "repo"))
	assert.Error(t, err)
}
