package resolve

import (
	"context"

	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/search"
	"github.com/redactyl/leaktrace/internal/types"
)

// Resolver runs the homepage cascade and then the account cascade, which may
// read the homepage just resolved.
type Resolver struct {
	Homepage *Cascade
	Account  *Cascade
}

// Report is the trace of both cascades for one entity.
type Report struct {
	Homepage Outcome
	Account  Outcome
}

// Settings carries what the default strategies need.
type Settings struct {
	Options       Options
	Fetcher       Fetcher
	Engine        search.Engine
	Platform      github.Platform
	HomepageQuery string
	AccountQuery  string
	HomepageID    string
}

// NewResolver wires the default strategy order: profile link then search for
// the homepage, homepage link then platform search for the account.
func NewResolver(s Settings) *Resolver {
	return &Resolver{
		Homepage: NewCascade("homepage", s.Options,
			ProfileHomepage{Fetcher: s.Fetcher, ElementID: s.HomepageID},
			SearchHomepage{Engine: s.Engine, Query: s.HomepageQuery},
		),
		Account: NewCascade("account", s.Options,
			HomepageAccount{Fetcher: s.Fetcher, Platform: s.Platform},
			SearchAccount{Engine: s.Engine, Query: s.AccountQuery, Platform: s.Platform},
		),
	}
}

// ResolveEntity fills in the entity's unset resolutions. Resolutions already
// present (for example from a cache) are left as they are.
func (r *Resolver) ResolveEntity(ctx context.Context, e *types.Entity) Report {
	var rep Report
	if !e.Homepage.IsSet() {
		rep.Homepage = r.Homepage.Resolve(ctx, *e)
		e.SetHomepage(rep.Homepage.Result)
	} else {
		rep.Homepage = Outcome{Result: e.Homepage}
	}
	if !e.Account.IsSet() {
		rep.Account = r.Account.Resolve(ctx, *e)
		e.SetAccount(rep.Account.Result)
	} else {
		rep.Account = Outcome{Result: e.Account}
	}
	return rep
}
