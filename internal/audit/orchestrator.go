// Package audit runs the per-repository clone, scan and parse sequence inside
// one workspace scope, and keeps the per-run audit log.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/gitclone"
	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/rules"
	"github.com/redactyl/leaktrace/internal/scanner"
	"github.com/redactyl/leaktrace/internal/types"
	"github.com/redactyl/leaktrace/internal/workspace"
)

// Cloner fetches a repository into a directory. A remote without commits is
// reported as gitclone.ErrEmptyRemote.
type Cloner interface {
	Clone(ctx context.Context, url, dir string) error
}

// Options configure an Orchestrator.
type Options struct {
	RulesPath string
	Rules     rules.Set
	// ExcludePaths are doublestar globs matched against finding file paths.
	ExcludePaths []string
}

// Result is the outcome of one audit. Findings and diagnostics are values
// and stay valid after the workspace is gone.
type Result struct {
	Repository  types.Repository
	Findings    []types.Finding
	Diagnostics []types.Diagnostic
	Excluded    int
	Elapsed     time.Duration
}

// Orchestrator audits repositories.
type Orchestrator struct {
	workspaces *workspace.Manager
	cloner     Cloner
	scanner    scanner.Scanner
	platform   github.Platform
	opts       Options
	log        *zap.Logger
}

// New validates the exclusion globs and returns an orchestrator.
func New(ws *workspace.Manager, cloner Cloner, sc scanner.Scanner, platform github.Platform, opts Options, log *zap.Logger) (*Orchestrator, error) {
	for _, p := range opts.ExcludePaths {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{workspaces: ws, cloner: cloner, scanner: sc, platform: platform, opts: opts, log: log}, nil
}

// Audit clones repo, scans its history and converts the records into
// findings attributed to entity. Failures become diagnostics; the scan never
// runs when the clone fails. An empty remote yields no findings and no
// diagnostic, and cancellation of ctx is not reported as a failure.
func (o *Orchestrator) Audit(ctx context.Context, entity types.Entity, repo types.Repository) Result {
	start := time.Now()
	res := Result{Repository: repo}
	diag := func(kind types.DiagnosticKind, err error) {
		if ctx.Err() != nil {
			return
		}
		res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
			Kind:       kind,
			Entity:     entity.Name,
			Account:    repo.Owner,
			Repository: repo.FullName(),
			Message:    err.Error(),
		})
		o.log.Warn("audit failed",
			zap.String("entity", entity.Name),
			zap.String("repository", repo.FullName()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	err := o.workspaces.With(ctx, repo, func(ctx context.Context, ws *workspace.Workspace) error {
		url := repo.CloneURL
		if url == "" {
			url = o.platform.CloneURL(repo.Owner, repo.Name)
		}
		err := o.cloner.Clone(ctx, url, ws.CloneDir())
		switch {
		case errors.Is(err, gitclone.ErrEmptyRemote):
			o.log.Debug("empty repository skipped", zap.String("repository", repo.FullName()))
			return nil
		case err != nil:
			diag(types.DiagCloneFailed, err)
			return err
		}
		if err := ws.StartScan(); err != nil {
			return err
		}
		recs, err := o.scanner.Scan(ctx, scanner.Request{
			Source:    ws.CloneDir(),
			Scratch:   ws.ScratchDir(),
			RulesPath: o.opts.RulesPath,
			Rules:     o.opts.Rules,
		})
		switch {
		case errors.Is(err, scanner.ErrParse):
			diag(types.DiagParseFailed, err)
			return err
		case err != nil:
			diag(types.DiagScanFailed, err)
			return err
		}
		for _, r := range recs {
			if o.excluded(r.File) {
				res.Excluded++
				continue
			}
			res.Findings = append(res.Findings, o.finding(entity, repo, r))
		}
		return nil
	})
	if err != nil && len(res.Diagnostics) == 0 && ctx.Err() == nil {
		// the workspace itself could not be acquired
		diag(types.DiagCloneFailed, err)
	}
	res.Elapsed = time.Since(start)
	o.log.Debug("audit finished",
		zap.String("repository", repo.FullName()),
		zap.Int("findings", len(res.Findings)),
		zap.Int("excluded", res.Excluded),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

func (o *Orchestrator) excluded(file string) bool {
	for _, p := range o.opts.ExcludePaths {
		if ok, _ := doublestar.Match(p, file); ok {
			return true
		}
	}
	return false
}

func (o *Orchestrator) finding(e types.Entity, repo types.Repository, r scanner.Record) types.Finding {
	return types.Finding{
		Organization: repo.Owner,
		Repository:   repo.Name,
		Person:       e.Name,
		EntityID:     e.ID,
		RuleID:       r.RuleID,
		Secret:       r.Secret,
		Match:        r.Match,
		File:         r.File,
		StartLine:    r.StartLine,
		EndLine:      r.EndLine,
		Commit:       r.Commit,
		Author:       r.Author,
		Date:         r.Date,
		Tags:         append([]string(nil), r.Tags...),
	}
}
