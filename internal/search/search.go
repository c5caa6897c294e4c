// Package search queries a web search engine and returns result URLs in the
// engine's own ranking order.
package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redactyl/leaktrace/internal/page"
	"github.com/redactyl/leaktrace/internal/web"
)

// DefaultURL is DuckDuckGo's script-free HTML endpoint.
const DefaultURL = "https://html.duckduckgo.com/html/"

// Engine returns result URLs for a query, best ranked first.
type Engine interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// HTMLEngine scrapes a results page whose result anchors carry a class.
type HTMLEngine struct {
	client      *web.Client
	endpoint    string
	resultClass string
}

// NewHTMLEngine builds an engine for the DuckDuckGo HTML layout at endpoint.
func NewHTMLEngine(client *web.Client, endpoint string) *HTMLEngine {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &HTMLEngine{client: client, endpoint: endpoint, resultClass: "result__a"}
}

func (e *HTMLEngine) Search(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return nil, fmt.Errorf("search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	resp, err := e.client.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	doc, err := page.Parse(resp.Body, u.String())
	if err != nil {
		return nil, err
	}
	var out []string
	for _, link := range doc.LinksWithClass(e.resultClass) {
		if target := unwrapRedirect(link); strings.HasPrefix(target, "http") {
			out = append(out, target)
		}
	}
	return out, nil
}

// unwrapRedirect turns a DuckDuckGo click-through link into its target.
func unwrapRedirect(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return link
}

// First returns the top result, or false when there is none.
func First(ctx context.Context, e Engine, query string) (string, bool, error) {
	results, err := e.Search(ctx, query)
	if err != nil {
		return "", false, err
	}
	if len(results) == 0 {
		return "", false, nil
	}
	return results[0], true, nil
}
