// Package update checks the release feed for a newer leaktrace version,
// remembering the answer for a day.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"
)

// Repository is the release source used by the checker and self-update.
const Repository = "redactyl/leaktrace"

const cacheFileName = "update.json"

type cache struct {
	LastChecked time.Time `json:"last_checked"`
	Latest      string    `json:"latest"`
}

// Checker compares the running version with the latest release.
type Checker struct {
	URL      string
	Client   *http.Client
	CacheDir string
	MaxAge   time.Duration
}

// NewChecker returns a checker against the public release endpoint, caching
// in the user config directory.
func NewChecker() *Checker {
	return &Checker{
		URL:      "https://api.github.com/repos/" + Repository + "/releases/latest",
		Client:   &http.Client{Timeout: 2 * time.Second},
		CacheDir: configDir(),
		MaxAge:   24 * time.Hour,
	}
}

func configDir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "leaktrace")
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "leaktrace")
}

func (c *Checker) load() cache {
	var v cache
	if c.CacheDir == "" {
		return v
	}
	b, err := os.ReadFile(filepath.Join(c.CacheDir, cacheFileName))
	if err != nil {
		return v
	}
	_ = json.Unmarshal(b, &v)
	return v
}

func (c *Checker) save(v cache) {
	if c.CacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.CacheDir, 0o700); err != nil {
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	_ = os.WriteFile(filepath.Join(c.CacheDir, cacheFileName), b, 0o600)
}

// Latest fetches the latest release tag.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "leaktrace-updater")
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release feed returned %s", resp.Status)
	}
	var obj struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return "", err
	}
	v := obj.TagName
	if v == "" {
		v = obj.Name
	}
	if v == "" {
		return "", errors.New("release has no tag")
	}
	return normalize(v), nil
}

// Check returns the latest known version and whether it is newer than
// current. It is a no-op under CI or when offline is set.
func (c *Checker) Check(ctx context.Context, current string, offline bool) (string, bool, error) {
	if os.Getenv("CI") != "" || offline {
		return "", false, nil
	}
	cached := c.load()
	latest := cached.Latest
	if latest == "" || time.Since(cached.LastChecked) > c.MaxAge {
		v, err := c.Latest(ctx)
		if err != nil {
			return latest, false, err
		}
		latest = v
		c.save(cache{LastChecked: time.Now(), Latest: latest})
	}
	newer, err := Newer(latest, current)
	return latest, newer, err
}

// Newer reports whether latest is a higher version than current.
func Newer(latest, current string) (bool, error) {
	if latest == "" || current == "" {
		return false, nil
	}
	l, err := semver.ParseTolerant(latest)
	if err != nil {
		return false, fmt.Errorf("latest version %q: %w", latest, err)
	}
	c, err := semver.ParseTolerant(current)
	if err != nil {
		return false, fmt.Errorf("current version %q: %w", current, err)
	}
	return l.GT(c), nil
}

func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}
