// Package native scans a repository's history in process with go-git,
// applying the rule-set to the lines each commit adds.
package native

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/rules"
	"github.com/redactyl/leaktrace/internal/scanner"
)

// maxBlobSize bounds files scanned in full at root commits.
const maxBlobSize = 4 << 20

// Scanner walks every commit reachable from any reference.
type Scanner struct {
	log *zap.Logger
}

// New returns an in-process scanner.
func New(log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{log: log}
}

// Name implements scanner.Scanner.
func (s *Scanner) Name() string { return "native" }

type rule struct {
	rules.Rule
	re       *regexp.Regexp
	keywords []string
}

func compile(set rules.Set) ([]rule, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	out := make([]rule, 0, len(set.Rules))
	for _, r := range set.Rules {
		kw := make([]string, len(r.Keywords))
		for i, k := range r.Keywords {
			kw[i] = strings.ToLower(k)
		}
		out = append(out, rule{Rule: r, re: regexp.MustCompile(r.Regex), keywords: kw})
	}
	return out, nil
}

// Scan implements scanner.Scanner.
func (s *Scanner) Scan(ctx context.Context, req scanner.Request) ([]scanner.Record, error) {
	compiled, err := compile(req.Rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanner.ErrInvocation, err)
	}
	repo, err := git.PlainOpen(req.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", scanner.ErrInvocation, req.Source, err)
	}
	if _, err := repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: resolving HEAD: %v", scanner.ErrInvocation, err)
	}
	commits, err := repo.Log(&git.LogOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("%w: walking history: %v", scanner.ErrInvocation, err)
	}
	defer commits.Close()

	var out []scanner.Record
	walked := 0
	err = commits.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		walked++
		recs, err := s.scanCommit(ctx, c, compiled)
		if err != nil {
			return err
		}
		out = append(out, recs...)
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, plumbing.ErrObjectNotFound):
		// shallow history ends at a missing parent
		s.log.Debug("history truncated", zap.String("source", req.Source), zap.Int("commits", walked))
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %v", scanner.ErrInvocation, ctx.Err())
	default:
		return nil, fmt.Errorf("%w: %v", scanner.ErrInvocation, err)
	}
	s.log.Debug("native scan finished",
		zap.String("source", req.Source),
		zap.Int("commits", walked),
		zap.Int("records", len(out)))
	return out, nil
}

func (s *Scanner) scanCommit(ctx context.Context, c *object.Commit, compiled []rule) ([]scanner.Record, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	meta := scanner.Record{
		Commit:  c.Hash.String(),
		Author:  c.Author.Name,
		Email:   c.Author.Email,
		Date:    c.Author.When.UTC().Format(time.RFC3339),
		Message: strings.TrimSpace(c.Message),
	}

	var parent *object.Commit
	if c.NumParents() > 0 {
		parent, err = c.Parent(0)
		if err != nil && !errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, err
		}
	}
	if parent == nil {
		return scanTree(tree, compiled, meta)
	}

	ptree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := ptree.DiffContext(ctx, tree)
	if err != nil {
		return nil, err
	}
	patch, err := changes.PatchContext(ctx)
	if err != nil {
		return nil, err
	}
	var out []scanner.Record
	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			continue
		}
		_, to := fp.Files()
		if to == nil {
			continue
		}
		line := 0
		for _, chunk := range fp.Chunks() {
			lines := splitLines(chunk.Content())
			switch chunk.Type() {
			case fdiff.Equal:
				line += len(lines)
			case fdiff.Add:
				for _, l := range lines {
					line++
					out = append(out, matchLine(compiled, meta, to.Path(), line, l)...)
				}
			}
		}
	}
	return out, nil
}

func scanTree(tree *object.Tree, compiled []rule, meta scanner.Record) ([]scanner.Record, error) {
	var out []scanner.Record
	err := tree.Files().ForEach(func(f *object.File) error {
		if f.Size > maxBlobSize {
			return nil
		}
		if bin, err := f.IsBinary(); err != nil || bin {
			return err
		}
		content, err := f.Contents()
		if err != nil {
			return err
		}
		for i, l := range splitLines(content) {
			out = append(out, matchLine(compiled, meta, f.Name, i+1, l)...)
		}
		return nil
	})
	return out, err
}

// matchLine applies every rule to one line. A rule with keywords only fires
// when one of them appears on the same line.
func matchLine(compiled []rule, meta scanner.Record, file string, lineNo int, line string) []scanner.Record {
	var out []scanner.Record
	var lower string
	for _, r := range compiled {
		if len(r.keywords) > 0 {
			if lower == "" {
				lower = strings.ToLower(line)
			}
			if !containsAny(lower, r.keywords) {
				continue
			}
		}
		for _, m := range r.re.FindAllStringSubmatchIndex(line, -1) {
			match := line[m[0]:m[1]]
			secret := match
			if g := r.SecretGroup; g > 0 && m[2*g] >= 0 {
				secret = line[m[2*g]:m[2*g+1]]
			}
			rec := meta
			rec.RuleID = r.ID
			rec.Description = r.Description
			rec.File = file
			rec.StartLine = lineNo
			rec.EndLine = lineNo
			rec.Match = match
			rec.Secret = secret
			rec.Tags = append([]string(nil), r.Tags...)
			out = append(out, rec)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, k := range subs {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
