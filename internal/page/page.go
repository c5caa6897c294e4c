// Package page extracts links from HTML documents.
package page

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Document is a parsed HTML page with the URL it was fetched from.
type Document struct {
	base *url.URL
	root *html.Node
}

// Parse parses body. base is used to resolve relative links and may be empty.
func Parse(body []byte, base string) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	d := &Document{root: root}
	if base != "" {
		if u, err := url.Parse(base); err == nil {
			d.base = u
		}
	}
	return d, nil
}

// Links returns the resolved href of every anchor in document order.
func (d *Document) Links() []string {
	return d.collect(d.root, func(*html.Node) bool { return true })
}

// LinksWithClass returns anchors carrying class in their class list.
func (d *Document) LinksWithClass(class string) []string {
	return d.collect(d.root, func(n *html.Node) bool { return hasClass(n, class) })
}

// LinkInElement returns the first anchor below the element with the given id.
func (d *Document) LinkInElement(id string) (string, bool) {
	el := find(d.root, func(n *html.Node) bool { return n.Type == html.ElementNode && attr(n, "id") == id })
	if el == nil {
		return "", false
	}
	links := d.collect(el, func(*html.Node) bool { return true })
	if len(links) == 0 {
		return "", false
	}
	return links[0], true
}

func (d *Document) collect(from *html.Node, keep func(*html.Node) bool) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && keep(n) {
			if href := strings.TrimSpace(attr(n, "href")); href != "" {
				out = append(out, d.resolve(href))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(from)
	return out
}

func (d *Document) resolve(href string) string {
	if d.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return d.base.ResolveReference(ref).String()
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hit := find(c, match); hit != nil {
			return hit
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
