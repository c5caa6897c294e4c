// Package workspace hands out ephemeral, exclusively owned clone
// directories whose removal is tied to the scope that acquired them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/types"
)

// State is the lifecycle position of a Workspace.
type State int

const (
	Acquired State = iota
	Scanning
	Failed
	Released
)

func (s State) String() string {
	switch s {
	case Acquired:
		return "acquired"
	case Scanning:
		return "scanning"
	case Failed:
		return "failed"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrReleased is returned when a transition is attempted after release.
var ErrReleased = errors.New("workspace already released")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Workspace is one directory bound to a single clone attempt.
type Workspace struct {
	Dir        string
	Repository types.Repository

	mu    sync.Mutex
	state State
	mgr   *Manager
}

// CloneDir is where the repository is checked out.
func (w *Workspace) CloneDir() string { return filepath.Join(w.Dir, "repo") }

// ScratchDir holds scanner output.
func (w *Workspace) ScratchDir() string { return filepath.Join(w.Dir, "out") }

// State reports the current lifecycle state.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// StartScan moves Acquired to Scanning. The manager's active-scan count
// includes the workspace until it is released.
func (w *Workspace) StartScan() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case Acquired:
		w.state = Scanning
		w.mgr.scanning.Add(1)
		return nil
	case Released:
		return ErrReleased
	default:
		return fmt.Errorf("cannot start scan from %s", w.state)
	}
}

// Fail moves Acquired or Scanning to Failed.
func (w *Workspace) Fail() {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case Scanning:
		w.mgr.scanning.Add(-1)
		w.state = Failed
	case Acquired:
		w.state = Failed
	}
}

// release removes the directory. It is idempotent.
func (w *Workspace) release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Released {
		return nil
	}
	if w.state == Scanning {
		w.mgr.scanning.Add(-1)
	}
	w.state = Released
	w.mgr.live.Add(-1)
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("removing workspace %s: %w", w.Dir, err)
	}
	return nil
}

// Manager creates workspaces under a root directory.
type Manager struct {
	root     string
	log      *zap.Logger
	live     atomic.Int64
	scanning atomic.Int64
}

// NewManager returns a manager creating directories under root; an empty
// root means the system temp dir.
func NewManager(root string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{root: root, log: log}
}

// Live is the number of workspaces not yet released.
func (m *Manager) Live() int { return int(m.live.Load()) }

// Scanning is the number of workspaces currently in the Scanning state.
func (m *Manager) Scanning() int { return int(m.scanning.Load()) }

func (m *Manager) acquire(repo types.Repository) (*Workspace, error) {
	if m.root != "" {
		if err := os.MkdirAll(m.root, 0o700); err != nil {
			return nil, fmt.Errorf("creating workspace root: %w", err)
		}
	}
	pattern := "leaktrace-" + unsafeChars.ReplaceAllString(repo.Owner+"-"+repo.Name, "_") + "-*"
	dir, err := os.MkdirTemp(m.root, pattern)
	if err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("securing workspace: %w", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "out"), 0o700); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("creating workspace scratch dir: %w", err)
	}
	m.live.Add(1)
	return &Workspace{Dir: dir, Repository: repo, mgr: m}, nil
}

// With acquires a workspace for repo, runs fn and removes the directory on
// every exit path, including panics and cancellation. fn must not retain
// the workspace or its paths.
func (m *Manager) With(ctx context.Context, repo types.Repository, fn func(context.Context, *Workspace) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	ws, err := m.acquire(repo)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := ws.release(); relErr != nil {
			m.log.Warn("workspace cleanup failed", zap.String("dir", ws.Dir), zap.Error(relErr))
			if err == nil {
				err = relErr
			}
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			ws.Fail()
			panic(r)
		}
	}()

	if err = fn(ctx, ws); err != nil {
		ws.Fail()
	}
	return err
}
