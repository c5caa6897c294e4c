// Package consolidate merges findings from concurrent audits into one
// deduplicated, deterministically ordered set.
package consolidate

import (
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/redactyl/leaktrace/internal/types"
)

// Key is the identity of a finding: the same secret in the same file at the
// same commit of the same repository is one finding.
type Key struct {
	Organization string
	Repository   string
	Commit       string
	File         string
	Secret       string
}

// KeyOf returns the identity of f.
func KeyOf(f types.Finding) Key {
	return Key{
		Organization: f.Organization,
		Repository:   f.Repository,
		Commit:       f.Commit,
		File:         f.File,
		Secret:       f.Secret,
	}
}

// Hash digests the key for storage outside the process, such as baseline
// fingerprints.
func (k Key) Hash() uint64 {
	d := xxhash.New()
	for _, part := range []string{k.Organization, k.Repository, k.Commit, k.File, k.Secret} {
		_, _ = d.WriteString(part)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// Consolidator accepts findings from any goroutine.
type Consolidator struct {
	mu   sync.Mutex
	byID map[Key]types.Finding
	seen int
}

// New returns an empty consolidator.
func New() *Consolidator {
	return &Consolidator{byID: map[Key]types.Finding{}}
}

// Add records findings. When two audits report the same key for different
// people the lexicographically smaller person wins, so the result does not
// depend on arrival order.
func (c *Consolidator) Add(fs ...types.Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fs {
		c.seen++
		k := KeyOf(f)
		if cur, ok := c.byID[k]; ok && !less(f, cur) {
			continue
		}
		c.byID[k] = f
	}
}

// Len is the number of distinct findings.
func (c *Consolidator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// Duplicates is the number of additions that collapsed into an existing key.
func (c *Consolidator) Duplicates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen - len(c.byID)
}

// Findings returns the distinct findings sorted by organization, person and
// file, with the remaining fields as tie-breakers.
func (c *Consolidator) Findings() []types.Finding {
	c.mu.Lock()
	out := make([]types.Finding, 0, len(c.byID))
	for _, f := range c.byID {
		out = append(out, f)
	}
	c.mu.Unlock()
	Sort(out)
	return out
}

// Sort orders findings deterministically in place.
func Sort(fs []types.Finding) {
	slices.SortFunc(fs, compare)
}

func compare(a, b types.Finding) int {
	for _, c := range [][2]string{
		{a.Organization, b.Organization},
		{a.Person, b.Person},
		{a.File, b.File},
		{a.Repository, b.Repository},
		{a.Commit, b.Commit},
		{a.Secret, b.Secret},
		{a.RuleID, b.RuleID},
		{a.EntityID, b.EntityID},
	} {
		if n := strings.Compare(c[0], c[1]); n != 0 {
			return n
		}
	}
	return a.StartLine - b.StartLine
}

// less picks the representative of a duplicate group.
func less(a, b types.Finding) bool {
	if a.Person != b.Person {
		return a.Person < b.Person
	}
	return compare(a, b) < 0
}
