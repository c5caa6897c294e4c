package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redactyl/leaktrace/internal/github"
	"github.com/redactyl/leaktrace/internal/page"
	"github.com/redactyl/leaktrace/internal/search"
	"github.com/redactyl/leaktrace/internal/types"
	"github.com/redactyl/leaktrace/internal/web"
)

const (
	DefaultHomepageQuery = `"{name}" AI researcher homepage OR personal website`
	DefaultAccountQuery  = `"{name}" site:{host}`
	DefaultHomepageID    = "homepage"
)

// Fetcher retrieves a page body.
type Fetcher interface {
	Get(ctx context.Context, url string) (web.Response, error)
}

// ProfileHomepage reads the designated homepage link of the seed profile.
type ProfileHomepage struct {
	Fetcher   Fetcher
	ElementID string
}

func (s ProfileHomepage) Name() string { return "profile-homepage" }

func (s ProfileHomepage) Resolve(ctx context.Context, e types.Entity) (types.Resolution[string], error) {
	if e.Profile == "" {
		return types.NotFound[string](), nil
	}
	doc, err := fetchPage(ctx, s.Fetcher, e.Profile)
	if err != nil || doc == nil {
		return types.NotFound[string](), err
	}
	id := s.ElementID
	if id == "" {
		id = DefaultHomepageID
	}
	link, ok := doc.LinkInElement(id)
	if !ok || !isHTTP(link) {
		return types.NotFound[string](), nil
	}
	return types.HighConfidence(link), nil
}

// SearchHomepage takes the first search result for a name-based query. The
// result is never better than BestGuess: common names are not disambiguated.
type SearchHomepage struct {
	Engine search.Engine
	Query  string
}

func (s SearchHomepage) Name() string { return "search-homepage" }

func (s SearchHomepage) Resolve(ctx context.Context, e types.Entity) (types.Resolution[string], error) {
	if e.Name == "" {
		return types.NotFound[string](), nil
	}
	q := s.Query
	if q == "" {
		q = DefaultHomepageQuery
	}
	first, ok, err := search.First(ctx, s.Engine, strings.ReplaceAll(q, "{name}", e.Name))
	if err != nil {
		return types.Resolution[string]{}, err
	}
	if !ok {
		return types.NotFound[string](), nil
	}
	return types.BestGuess(first), nil
}

// HomepageAccount scans the resolved homepage for a link to the platform.
// The account inherits the homepage's confidence.
type HomepageAccount struct {
	Fetcher  Fetcher
	Platform github.Platform
}

func (s HomepageAccount) Name() string { return "homepage-account-link" }

func (s HomepageAccount) Resolve(ctx context.Context, e types.Entity) (types.Resolution[string], error) {
	homepage, ok := e.Homepage.Get()
	if !ok || !isHTTP(homepage) {
		return types.NotFound[string](), nil
	}
	doc, err := fetchPage(ctx, s.Fetcher, homepage)
	if err != nil || doc == nil {
		return types.NotFound[string](), err
	}
	for _, link := range doc.Links() {
		if root, ok := s.Platform.AccountRoot(link); ok {
			if e.Homepage.Tier() == types.TierHighConfidence {
				return types.HighConfidence(root), nil
			}
			return types.BestGuess(root), nil
		}
	}
	return types.NotFound[string](), nil
}

// SearchAccount searches within the platform's domain and takes the first
// hit if it is an account URL. Never better than BestGuess.
type SearchAccount struct {
	Engine   search.Engine
	Query    string
	Platform github.Platform
}

func (s SearchAccount) Name() string { return "search-account" }

func (s SearchAccount) Resolve(ctx context.Context, e types.Entity) (types.Resolution[string], error) {
	if e.Name == "" {
		return types.NotFound[string](), nil
	}
	q := s.Query
	if q == "" {
		q = DefaultAccountQuery
	}
	q = strings.NewReplacer("{name}", e.Name, "{host}", s.Platform.Host).Replace(q)
	first, ok, err := search.First(ctx, s.Engine, q)
	if err != nil {
		return types.Resolution[string]{}, err
	}
	if !ok {
		return types.NotFound[string](), nil
	}
	root, ok := s.Platform.AccountRoot(first)
	if !ok {
		return types.NotFound[string](), nil
	}
	return types.BestGuess(root), nil
}

// fetchPage returns a nil document without error when the page is gone.
func fetchPage(ctx context.Context, f Fetcher, url string) (*page.Document, error) {
	resp, err := f.Get(ctx, url)
	if errors.Is(err, web.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	return page.Parse(resp.Body, url)
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
