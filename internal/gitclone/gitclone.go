// Package gitclone fetches a repository into a workspace with go-git.
package gitclone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"
)

// ErrEmptyRemote is returned when the remote has no commits. Nothing is left
// on disk and there is no history to scan.
var ErrEmptyRemote = errors.New("remote repository is empty")

// Options tune a clone.
type Options struct {
	// Depth limits fetched history; zero fetches everything.
	Depth int
	// Timeout bounds one clone; zero means only the caller's context.
	Timeout time.Duration
	// Token authenticates HTTPS clones when set.
	Token string
}

// Cloner clones over HTTPS.
type Cloner struct {
	opts Options
	log  *zap.Logger
}

// New returns a Cloner.
func New(opts Options, log *zap.Logger) *Cloner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cloner{opts: opts, log: log}
}

// Clone checks out url into dir. An empty remote returns ErrEmptyRemote.
func (c *Cloner) Clone(ctx context.Context, url, dir string) error {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	co := &git.CloneOptions{
		URL:        url,
		Depth:      c.opts.Depth,
		Tags:       git.NoTags,
		NoCheckout: true,
	}
	if c.opts.Token != "" {
		co.Auth = &http.BasicAuth{Username: "x-access-token", Password: c.opts.Token}
	}
	start := time.Now()
	_, err := git.PlainCloneContext(ctx, dir, false, co)
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		c.log.Debug("remote is empty", zap.String("url", url))
		return fmt.Errorf("cloning %s: %w", url, ErrEmptyRemote)
	}
	if err != nil {
		return fmt.Errorf("cloning %s: %w", url, err)
	}
	c.log.Debug("cloned",
		zap.String("url", url),
		zap.Int("depth", c.opts.Depth),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
