// Package pipeline drives a run: resolve every person, enumerate each
// resolved account once, audit the repositories on a bounded worker pool and
// consolidate what the audits report.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/redactyl/leaktrace/internal/audit"
	"github.com/redactyl/leaktrace/internal/consolidate"
	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/resolve"
	"github.com/redactyl/leaktrace/internal/types"
)

// Resolver fills in an entity's homepage and account.
type Resolver interface {
	ResolveEntity(ctx context.Context, e *types.Entity) resolve.Report
}

// Lister enumerates an account's repositories.
type Lister interface {
	List(ctx context.Context, account string) github.Listing
}

// Auditor audits one repository for one entity.
type Auditor interface {
	Audit(ctx context.Context, e types.Entity, repo types.Repository) audit.Result
}

// Cache persists resolutions between runs.
type Cache interface {
	Restore(e *types.Entity) bool
	Store(e types.Entity)
}

// Options configure a Pipeline.
type Options struct {
	Concurrency    int
	ResolveWorkers int
	Platform       github.Platform
	Cache          Cache
	Logger         *zap.Logger
}

// Pipeline wires the stages together.
type Pipeline struct {
	resolver Resolver
	lister   Lister
	auditor  Auditor
	opts     Options
	log      *zap.Logger
}

// New returns a pipeline.
func New(r Resolver, l Lister, a Auditor, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.ResolveWorkers < 1 {
		opts.ResolveWorkers = 4
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{resolver: r, lister: l, auditor: a, opts: opts, log: log}
}

// Summary is everything a run produced.
type Summary struct {
	Entities     []types.Entity
	Findings     []types.Finding
	Diagnostics  []types.Diagnostic
	Accounts     int
	Repositories int
	Duplicates   int
	Duration     time.Duration
}

// Resolve resolves entities concurrently. The returned slice is a copy in
// input order; resolution failures become diagnostics.
func (p *Pipeline) Resolve(ctx context.Context, entities []types.Entity) ([]types.Entity, []types.Diagnostic) {
	out := append([]types.Entity(nil), entities...)
	diags := make([][]types.Diagnostic, len(out))

	var g errgroup.Group
	g.SetLimit(p.opts.ResolveWorkers)
	for i := range out {
		g.Go(func() error {
			e := &out[i]
			if p.opts.Cache != nil && p.opts.Cache.Restore(e) {
				p.log.Debug("resolution restored from cache", zap.String("entity", e.Name))
			}
			if ctx.Err() != nil && !e.Account.IsSet() {
				return nil
			}
			p.resolver.ResolveEntity(ctx, e)
			if p.opts.Cache != nil {
				p.opts.Cache.Store(*e)
			}
			diags[i] = resolutionDiagnostics(*e)
			p.log.Info("resolved",
				zap.String("entity", e.Name),
				zap.Stringer("homepage", e.Homepage),
				zap.Stringer("account", e.Account))
			return nil
		})
	}
	_ = g.Wait()

	var all []types.Diagnostic
	for _, d := range diags {
		all = append(all, d...)
	}
	return out, all
}

func resolutionDiagnostics(e types.Entity) []types.Diagnostic {
	switch e.Account.Tier() {
	case types.TierNotFound:
		return []types.Diagnostic{{Kind: types.DiagNotFound, Entity: e.Name, Message: "no account resolved"}}
	case types.TierFailed:
		return []types.Diagnostic{{Kind: types.DiagTransient, Entity: e.Name, Message: "account resolution failed: " + e.Account.Reason()}}
	}
	return nil
}

// target is an account to enumerate with the entity its findings are
// attributed to.
type target struct {
	login  string
	entity types.Entity
}

// targets maps resolved accounts to logins. An account shared by several
// people is audited once, for the lexicographically first name.
func (p *Pipeline) targets(entities []types.Entity) []target {
	byLogin := map[string]types.Entity{}
	logins := map[string]string{}
	var order []string
	for _, e := range entities {
		u, ok := e.Account.Get()
		if !ok {
			continue
		}
		login, ok := p.opts.Platform.Login(u)
		if !ok {
			continue
		}
		key := strings.ToLower(login)
		cur, seen := byLogin[key]
		if !seen {
			order = append(order, key)
			logins[key] = login
		}
		if !seen || e.Name < cur.Name {
			byLogin[key] = e
		}
	}
	out := make([]target, 0, len(order))
	for _, k := range order {
		out = append(out, target{login: logins[k], entity: byLogin[k]})
	}
	return out
}

type job struct {
	entity types.Entity
	repo   types.Repository
}

type event struct {
	findings []types.Finding
	diags    []types.Diagnostic
	audited  bool
}

// Run executes the whole pipeline. A cancelled context stops new clone and
// scan work; what was collected so far is still returned along with the
// context's error.
func (p *Pipeline) Run(ctx context.Context, entities []types.Entity) (Summary, error) {
	start := time.Now()
	var sum Summary
	resolved, diags := p.Resolve(ctx, entities)
	sum.Entities = resolved
	sum.Diagnostics = append(sum.Diagnostics, diags...)

	targets := p.targets(resolved)
	sum.Accounts = len(targets)

	jobs := make(chan job)
	events := make(chan event)
	cons := consolidate.New()
	collected := make(chan struct{})

	// single collector; the only writer of sum after this point
	go func() {
		defer close(collected)
		for ev := range events {
			cons.Add(ev.findings...)
			sum.Diagnostics = append(sum.Diagnostics, ev.diags...)
			if ev.audited {
				sum.Repositories++
			}
		}
	}()

	var workers errgroup.Group
	for range p.opts.Concurrency {
		workers.Go(func() error {
			for j := range jobs {
				if ctx.Err() != nil {
					continue
				}
				res := p.auditor.Audit(ctx, j.entity, j.repo)
				events <- event{findings: res.Findings, diags: res.Diagnostics, audited: true}
			}
			return nil
		})
	}

	seen := map[string]bool{}
produce:
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		listing := p.lister.List(ctx, t.login)
		if d, ok := listing.Diagnostic(); ok {
			d.Entity = t.entity.Name
			events <- event{diags: []types.Diagnostic{d}}
		}
		for _, r := range listing.Repositories {
			key := r.FullName()
			if seen[key] {
				continue
			}
			seen[key] = true
			select {
			case jobs <- job{entity: t.entity, repo: r}:
			case <-ctx.Done():
				break produce
			}
		}
	}
	close(jobs)
	_ = workers.Wait()
	close(events)
	<-collected

	sum.Findings = cons.Findings()
	sum.Duplicates = cons.Duplicates()
	sortDiagnostics(sum.Diagnostics)
	sum.Duration = time.Since(start)
	p.log.Info("run finished",
		zap.Int("entities", len(sum.Entities)),
		zap.Int("accounts", sum.Accounts),
		zap.Int("repositories", sum.Repositories),
		zap.Int("findings", len(sum.Findings)),
		zap.Int("diagnostics", len(sum.Diagnostics)),
		zap.Duration("elapsed", sum.Duration))
	return sum, ctx.Err()
}

func sortDiagnostics(ds []types.Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		return a.Repository < b.Repository
	})
}
