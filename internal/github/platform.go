package github

import (
	"regexp"
	"strings"
)

// DefaultHost is the hosting platform audited by default.
const DefaultHost = "github.com"

// Platform knows how to recognise account URLs on one hosting platform.
type Platform struct {
	Host    string
	WebBase string
	pattern *regexp.Regexp
}

// NewPlatform builds a platform for host. webBase is the scheme+host used for
// account-root URLs and permalinks; empty means https://host.
func NewPlatform(host, webBase string) Platform {
	if host == "" {
		host = DefaultHost
	}
	if webBase == "" {
		webBase = "https://" + host
	}
	return Platform{
		Host:    host,
		WebBase: strings.TrimRight(webBase, "/"),
		pattern: regexp.MustCompile(`(?i)https?://(?:www\.)?` + regexp.QuoteMeta(host) + `/([^/?#"'\s]+)`),
	}
}

// AccountRoot extracts scheme + platform host + first path segment from a
// link on the platform.
func (p Platform) AccountRoot(link string) (string, bool) {
	if !strings.Contains(strings.ToLower(link), strings.ToLower(p.Host)+"/") {
		return "", false
	}
	m := p.pattern.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return p.WebBase + "/" + m[1], true
}

// Login returns the account name of an account-root URL.
func (p Platform) Login(accountURL string) (string, bool) {
	root, ok := p.AccountRoot(accountURL)
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(root, p.WebBase+"/"), true
}

// Permalink points at file in repository at commit.
func (p Platform) Permalink(owner, repo, commit, file string) string {
	return p.WebBase + "/" + owner + "/" + repo + "/blob/" + commit + "/" + strings.TrimPrefix(file, "/")
}

// CloneURL is the anonymous HTTPS clone URL of owner/repo.
func (p Platform) CloneURL(owner, repo string) string {
	return p.WebBase + "/" + owner + "/" + repo + ".git"
}
