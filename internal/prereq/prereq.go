// Package prereq checks the external tools a run depends on before any
// network or disk work starts.
package prereq

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/blang/semver/v4"

	"github.com/redactyl/leaktrace/internal/scanner/gitleaks"
)

// MinGitleaks is the oldest scanner release whose report format is understood.
var MinGitleaks = semver.MustParse("8.0.0")

// ErrMissing matches every prerequisite failure.
var ErrMissing = errors.New("prerequisite missing")

// Checker looks tools up. The fields are replaceable for tests.
type Checker struct {
	LookPath func(string) (string, error)
	Version  func(ctx context.Context, binary string) (string, error)
}

// New returns a checker using the real PATH.
func New() *Checker {
	return &Checker{LookPath: exec.LookPath, Version: gitleaks.Version}
}

// Tools is what a successful check found.
type Tools struct {
	Git             string
	Gitleaks        string
	GitleaksVersion string
}

// Check requires git and, unless native is set, a gitleaks binary of at
// least MinGitleaks (or at least want, when given).
func (c *Checker) Check(ctx context.Context, gitleaksBinary, want string, native bool) (Tools, error) {
	var t Tools
	git, err := c.LookPath("git")
	if err != nil {
		return t, fmt.Errorf("%w: git not found in PATH", ErrMissing)
	}
	t.Git = git
	if native {
		return t, nil
	}

	bin := gitleaksBinary
	if bin == "" {
		if bin, err = c.LookPath("gitleaks"); err != nil {
			return t, fmt.Errorf("%w: gitleaks not found in PATH (install it or set gitleaks.binary)", ErrMissing)
		}
	} else if _, err := gitleaks.Locate(bin); err != nil {
		return t, fmt.Errorf("%w: %v", ErrMissing, err)
	}
	t.Gitleaks = bin

	raw, err := c.Version(ctx, bin)
	if err != nil {
		return t, fmt.Errorf("%w: %v", ErrMissing, err)
	}
	got, err := semver.ParseTolerant(raw)
	if err != nil {
		return t, fmt.Errorf("%w: gitleaks version %q: %v", ErrMissing, raw, err)
	}
	t.GitleaksVersion = got.String()

	floor := MinGitleaks
	if want != "" && want != "latest" {
		w, err := semver.ParseTolerant(want)
		if err != nil {
			return t, fmt.Errorf("invalid gitleaks.version %q: %w", want, err)
		}
		if w.GT(floor) {
			floor = w
		}
	}
	if got.LT(floor) {
		return t, fmt.Errorf("%w: gitleaks %s is older than required %s", ErrMissing, got, floor)
	}
	return t, nil
}
