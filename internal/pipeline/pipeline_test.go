package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/leaktrace/internal/audit"
	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/resolve"
	"github.com/redactyl/leaktrace/internal/retry"
	"github.com/redactyl/leaktrace/internal/types"
)

type fakeResolver struct {
	accounts map[string]types.Resolution[string]
	calls    atomic.Int32
}

func (f *fakeResolver) ResolveEntity(_ context.Context, e *types.Entity) resolve.Report {
	f.calls.Add(1)
	if !e.Account.IsSet() {
		r, ok := f.accounts[e.Name]
		if !ok {
			r = types.NotFound[string]()
		}
		e.SetAccount(r)
	}
	return resolve.Report{Account: resolve.Outcome{Result: e.Account}}
}

type fakeLister struct {
	mu       sync.Mutex
	repos    map[string][]types.Repository
	errs     map[string]error
	partial  map[string]bool
	requests []string
}

func (f *fakeLister) List(_ context.Context, account string) github.Listing {
	f.mu.Lock()
	f.requests = append(f.requests, account)
	f.mu.Unlock()
	l := github.Listing{Account: account, Err: f.errs[account], Partial: f.partial[account]}
	if l.Err == nil || l.Partial {
		l.Repositories = f.repos[account]
	}
	return l
}

type fakeAuditor struct {
	findings map[string][]types.Finding
	diags    map[string][]types.Diagnostic
	delay    time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
	audited  atomic.Int32
}

func (f *fakeAuditor) Audit(ctx context.Context, e types.Entity, repo types.Repository) audit.Result {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	f.audited.Add(1)
	res := audit.Result{Repository: repo, Diagnostics: f.diags[repo.FullName()]}
	for _, fd := range f.findings[repo.FullName()] {
		fd.Organization = repo.Owner
		fd.Repository = repo.Name
		fd.Person = e.Name
		fd.EntityID = e.ID
		res.Findings = append(res.Findings, fd)
	}
	return res
}

func repos(owner string, names ...string) []types.Repository {
	out := make([]types.Repository, 0, len(names))
	for _, n := range names {
		out = append(out, types.Repository{Owner: owner, Name: n})
	}
	return out
}

func acct(login string) types.Resolution[string] {
	return types.HighConfidence("https://github.com/" + login)
}

func newPipeline(r Resolver, l Lister, a Auditor, concurrency int) *Pipeline {
	return New(r, l, a, Options{
		Concurrency:    concurrency,
		ResolveWorkers: 2,
		Platform:       github.NewPlatform("", ""),
	})
}

func TestRun_ConsolidatesSharedAccount(t *testing.T) {
	res := &fakeResolver{accounts: map[string]types.Resolution[string]{
		"Bob": acct("shared"),
		"Al":  acct("Shared"),
	}}
	lister := &fakeLister{repos: map[string][]types.Repository{"shared": repos("shared", "app")}}
	aud := &fakeAuditor{findings: map[string][]types.Finding{
		"shared/app": {{RuleID: "openai-api-key", Secret: "sk-x", File: "a.py", Commit: "c1"}},
	}}

	sum, err := newPipeline(res, lister, aud, 2).Run(context.Background(), []types.Entity{
		types.NewEntity("2", "Bob", ""),
		types.NewEntity("1", "Al", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Accounts, "one account enumerated once")
	assert.Len(t, lister.requests, 1)
	require.Len(t, sum.Findings, 1)
	assert.Equal(t, "Al", sum.Findings[0].Person)
	assert.Equal(t, 1, sum.Repositories)
	assert.Len(t, sum.Entities, 2)
}

func TestRun_AccountFailureDoesNotStopOthers(t *testing.T) {
	res := &fakeResolver{accounts: map[string]types.Resolution[string]{
		"Ann": acct("ann"),
		"Ben": acct("ben"),
		"Cy":  types.Failed[string]("search unavailable"),
	}}
	lister := &fakeLister{
		repos: map[string][]types.Repository{
			"ann": repos("ann", "one", "two"),
			"ben": repos("ben", "three"),
		},
		errs:    map[string]error{"ann": retry.RateLimited(errors.New("429"))},
		partial: map[string]bool{"ann": true},
	}
	aud := &fakeAuditor{
		findings: map[string][]types.Finding{
			"ben/three": {{RuleID: "fireworks-ai-api-key", Secret: "fw-x", File: "f", Commit: "c"}},
		},
		diags: map[string][]types.Diagnostic{
			"ann/two": {{Kind: types.DiagCloneFailed, Repository: "ann/two", Message: "boom"}},
		},
	}

	sum, err := newPipeline(res, lister, aud, 3).Run(context.Background(), []types.Entity{
		types.NewEntity("a", "Ann", ""),
		types.NewEntity("b", "Ben", ""),
		types.NewEntity("c", "Cy", ""),
		types.NewEntity("d", "Dee", ""),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Repositories, "partial listing still audits what was collected")
	require.Len(t, sum.Findings, 1)
	assert.Equal(t, "Ben", sum.Findings[0].Person)

	kinds := map[types.DiagnosticKind]int{}
	for _, d := range sum.Diagnostics {
		kinds[d.Kind]++
	}
	assert.Equal(t, 1, kinds[types.DiagRateLimited])
	assert.Equal(t, 1, kinds[types.DiagCloneFailed])
	assert.Equal(t, 1, kinds[types.DiagTransient], "failed resolution")
	assert.Equal(t, 1, kinds[types.DiagNotFound], "unresolved person")
}

func TestRun_BoundsConcurrentAudits(t *testing.T) {
	res := &fakeResolver{accounts: map[string]types.Resolution[string]{"Ann": acct("ann")}}
	lister := &fakeLister{repos: map[string][]types.Repository{
		"ann": repos("ann", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8"),
	}}
	aud := &fakeAuditor{delay: 20 * time.Millisecond}

	sum, err := newPipeline(res, lister, aud, 3).Run(context.Background(), []types.Entity{types.NewEntity("a", "Ann", "")})
	require.NoError(t, err)
	assert.Equal(t, 8, sum.Repositories)
	assert.LessOrEqual(t, aud.peak.Load(), int32(3))
	assert.Positive(t, aud.peak.Load())
}

func TestRun_DuplicateRepositoriesAuditedOnce(t *testing.T) {
	res := &fakeResolver{accounts: map[string]types.Resolution[string]{"Ann": acct("ann")}}
	lister := &fakeLister{repos: map[string][]types.Repository{
		"ann": append(repos("ann", "a", "b"), repos("ann", "a")...),
	}}
	aud := &fakeAuditor{}
	sum, err := newPipeline(res, lister, aud, 2).Run(context.Background(), []types.Entity{types.NewEntity("a", "Ann", "")})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Repositories)
	assert.Equal(t, int32(2), aud.audited.Load())
}

func TestRun_CancellationReturnsPartialSummary(t *testing.T) {
	res := &fakeResolver{accounts: map[string]types.Resolution[string]{"Ann": acct("ann")}}
	names := make([]string, 50)
	for i := range names {
		names[i] = "r" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	lister := &fakeLister{repos: map[string][]types.Repository{"ann": repos("ann", names...)}}
	aud := &fakeAuditor{delay: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	sum, err := newPipeline(res, lister, aud, 2).Run(ctx, []types.Entity{types.NewEntity("a", "Ann", "")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, sum.Repositories, 50)
	assert.Len(t, sum.Entities, 1)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]types.Entity
}

func (m *memCache) Restore(e *types.Entity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.entries[e.ID]
	if !ok {
		return false
	}
	return e.SetAccount(c.Account)
}

func (m *memCache) Store(e types.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
}

func TestResolve_UsesCache(t *testing.T) {
	cache := &memCache{entries: map[string]types.Entity{
		"a": {ID: "a", Name: "Ann", Account: acct("cached")},
	}}
	res := &fakeResolver{accounts: map[string]types.Resolution[string]{
		"Ann": acct("fresh"),
		"Ben": acct("ben"),
	}}
	p := New(res, &fakeLister{}, &fakeAuditor{}, Options{Platform: github.NewPlatform("", ""), Cache: cache})

	out, diags := p.Resolve(context.Background(), []types.Entity{
		types.NewEntity("a", "Ann", ""),
		types.NewEntity("b", "Ben", ""),
	})
	assert.Empty(t, diags)
	require.Len(t, out, 2)

	a, _ := out[0].Account.Get()
	assert.Equal(t, "https://github.com/cached", a)
	b, _ := out[1].Account.Get()
	assert.Equal(t, "https://github.com/ben", b)
	assert.Contains(t, cache.entries, "b")
}

func TestTargets_SkipsUnrecognisedAccounts(t *testing.T) {
	p := newPipeline(&fakeResolver{}, &fakeLister{}, &fakeAuditor{}, 1)
	ann := types.NewEntity("a", "Ann", "")
	ann.SetAccount(types.BestGuess("https://example.com/ann"))
	zed := types.NewEntity("z", "Zed", "")
	zed.SetAccount(acct("zed"))
	amy := types.NewEntity("m", "Amy", "")
	amy.SetAccount(acct("zed"))

	got := p.targets([]types.Entity{ann, zed, amy})
	require.Len(t, got, 1)
	assert.Equal(t, "zed", got[0].login)
	assert.Equal(t, "Amy", got[0].entity.Name)
}
