// Package github enumerates an account's public repositories through the
// paginated REST listing endpoint and recognises account URLs on the
// platform.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/redactyl/leaktrace/internal/retry"
	"github.com/redactyl/leaktrace/internal/types"
	"github.com/redactyl/leaktrace/internal/web"
)

// DefaultAPIBase is the public REST endpoint.
const DefaultAPIBase = "https://api.github.com"

// ErrMalformedResponse matches listing pages that are not a JSON array of
// repository objects.
var ErrMalformedResponse = errors.New("malformed listing response")

// ErrPageLimit is reported when the last permitted page came back full, so
// the account may own repositories that were never listed.
var ErrPageLimit = errors.New("listing page limit reached")

// Options configure a Client.
type Options struct {
	APIBase   string
	Token     string
	PerPage   int
	MaxPages  int
	Timeout   time.Duration
	UserAgent string
	// HTTPClient is the transport used for requests; nil means a default client.
	HTTPClient *http.Client
}

// Client lists repositories. The token is optional; without it the
// unauthenticated request budget applies.
type Client struct {
	web      *web.Client
	apiBase  string
	perPage  int
	maxPages int
	log      *zap.Logger
}

type apiRepo struct {
	Name          string `json:"name"`
	Fork          bool   `json:"fork"`
	DefaultBranch string `json:"default_branch"`
	CloneURL      string `json:"clone_url"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// NewClient builds a client sharing policy with the rest of the run.
func NewClient(ctx context.Context, opts Options, policy *retry.Policy, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.PerPage <= 0 || opts.PerPage > 100 {
		opts.PerPage = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	hc := opts.HTTPClient
	if opts.Token != "" {
		if hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	}
	return &Client{
		web: web.New(hc, policy, opts.Timeout,
			web.WithUserAgent(opts.UserAgent),
			web.WithHeader("Accept", "application/vnd.github+json"),
			web.WithHeader("X-GitHub-Api-Version", "2022-11-28")),
		apiBase:  strings.TrimRight(opts.APIBase, "/"),
		perPage:  opts.PerPage,
		maxPages: opts.MaxPages,
		log:      log,
	}
}

// Repositories lazily walks the listing pages of account, yielding each
// non-fork repository. Iteration ends at the first empty page, at MaxPages,
// or after yielding an error. A full page at MaxPages yields ErrPageLimit.
func (c *Client) Repositories(ctx context.Context, account string) iter.Seq2[types.Repository, error] {
	return func(yield func(types.Repository, error) bool) {
		for page := 1; page <= c.maxPages; page++ {
			repos, err := c.page(ctx, account, page)
			if err != nil {
				yield(types.Repository{}, err)
				return
			}
			if len(repos) == 0 {
				return
			}
			for _, r := range repos {
				if r.Fork {
					continue
				}
				if !yield(r, nil) {
					return
				}
			}
			if page == c.maxPages && len(repos) >= c.perPage {
				yield(types.Repository{}, fmt.Errorf("listing %s: %w (%d pages)", account, ErrPageLimit, page))
				return
			}
		}
	}
}

// Listing is the collected result of enumerating one account.
type Listing struct {
	Account      string
	Repositories []types.Repository
	// Partial is set when a rate limit, an exhausted transient failure or
	// the page limit cut the enumeration short; Repositories holds what was
	// collected.
	Partial bool
	Err     error
}

// Diagnostic maps the listing's error onto the run's taxonomy. ok is false
// for a clean listing.
func (l Listing) Diagnostic() (types.Diagnostic, bool) {
	if l.Err == nil {
		return types.Diagnostic{}, false
	}
	d := types.Diagnostic{Account: l.Account, Message: l.Err.Error()}
	switch {
	case errors.Is(l.Err, retry.ErrRateLimited):
		d.Kind = types.DiagRateLimited
	case errors.Is(l.Err, retry.ErrTransient):
		d.Kind = types.DiagTransient
	case errors.Is(l.Err, web.ErrNotFound):
		d.Kind = types.DiagNotFound
	default:
		d.Kind = types.DiagEnumerationFailed
	}
	return d, true
}

// List collects Repositories. Rate limits, exhausted transient failures and
// the page limit keep what was gathered and mark the listing Partial; any
// other failure (malformed page, unknown account) discards it.
func (c *Client) List(ctx context.Context, account string) Listing {
	l := Listing{Account: account}
	for r, err := range c.Repositories(ctx, account) {
		if err != nil {
			l.Err = err
			if errors.Is(err, retry.ErrRateLimited) || errors.Is(err, retry.ErrTransient) || errors.Is(err, ErrPageLimit) {
				l.Partial = true
			} else {
				l.Repositories = nil
			}
			c.log.Warn("repository enumeration stopped",
				zap.String("account", account),
				zap.Bool("partial", l.Partial),
				zap.Int("collected", len(l.Repositories)),
				zap.Error(err))
			return l
		}
		l.Repositories = append(l.Repositories, r)
	}
	return l
}

func (c *Client) page(ctx context.Context, account string, page int) ([]types.Repository, error) {
	u := fmt.Sprintf("%s/users/%s/repos?type=owner&per_page=%d&page=%d", c.apiBase, url.PathEscape(account), c.perPage, page)
	resp, err := c.web.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("listing %s page %d: %w", account, page, err)
	}
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		c.log.Debug("listing page fetched",
			zap.String("account", account),
			zap.Int("page", page),
			zap.String("rate_limit_remaining", remaining))
	}

	var raw []apiRepo
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("listing %s page %d: %w: %v", account, page, ErrMalformedResponse, err)
	}
	repos := make([]types.Repository, 0, len(raw))
	for i, r := range raw {
		if r.Name == "" {
			return nil, fmt.Errorf("listing %s page %d: %w: entry %d has no name", account, page, ErrMalformedResponse, i)
		}
		owner := r.Owner.Login
		if owner == "" {
			owner = account
		}
		repos = append(repos, types.Repository{
			Owner:         owner,
			Name:          r.Name,
			Fork:          r.Fork,
			DefaultBranch: r.DefaultBranch,
			CloneURL:      r.CloneURL,
		})
	}
	return repos, nil
}
