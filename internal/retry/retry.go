// Package retry is the shared throttling and retry policy wrapped around every
// outbound call: a pacer that keeps a minimum interval between requests and a
// bounded exponential backoff with jitter for transient and rate-limit
// failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited matches failures caused by an explicit rate-limit signal.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient matches retryable failures such as timeouts and 5xx replies.
	ErrTransient = errors.New("transient failure")
)

type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string {
	if c.err == nil {
		return c.kind.Error()
	}
	return c.kind.Error() + ": " + c.err.Error()
}

func (c *classified) Unwrap() []error { return []error{c.kind, c.err} }

// RateLimited marks err as a rate-limit signal.
func RateLimited(err error) error { return &classified{kind: ErrRateLimited, err: err} }

// Transient marks err as retryable.
func Transient(err error) error { return &classified{kind: ErrTransient, err: err} }

// Retryable reports whether err is a transient or rate-limit failure. Network
// timeouts count as transient even when the caller did not classify them.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Config holds the policy tunables.
type Config struct {
	MaxAttempts  int
	Base         time.Duration
	Max          time.Duration
	RequestDelay time.Duration
}

// DefaultConfig mirrors the conservative defaults used by the CLI.
func DefaultConfig() Config {
	return Config{MaxAttempts: 4, Base: time.Second, Max: 30 * time.Second, RequestDelay: time.Second}
}

// Policy is safe for concurrent use; one instance is shared by all clients of
// a run so the pacing budget is global.
type Policy struct {
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
	sleep   func(context.Context, time.Duration) error
	jitter  func(time.Duration) time.Duration
}

// New builds a policy. A zero RequestDelay disables pacing.
func New(cfg Config, log *zap.Logger) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Base <= 0 {
		cfg.Base = 500 * time.Millisecond
	}
	if cfg.Max < cfg.Base {
		cfg.Max = cfg.Base
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Policy{cfg: cfg, log: log, sleep: sleepContext, jitter: equalJitter}
	if cfg.RequestDelay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	return p
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Non-retryable errors are returned untouched after
// the first attempt. On exhaustion the last error is returned wrapped, so it
// still matches ErrRateLimited or ErrTransient.
func (p *Policy) Do(ctx context.Context, op func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("waiting for request slot: %w", err)
			}
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		}
		if !Retryable(err) {
			return err
		}
		last = err
		if attempt == p.cfg.MaxAttempts {
			break
		}
		wait := p.Backoff(attempt)
		if ra := retryAfter(err); ra > wait {
			wait = min(ra, p.cfg.Max)
		}
		p.log.Debug("retrying outbound call",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		if err := p.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, last)
		}
	}
	if errors.Is(last, ErrTransient) || errors.Is(last, ErrRateLimited) {
		return fmt.Errorf("giving up after %d attempts: %w", p.cfg.MaxAttempts, last)
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.cfg.MaxAttempts, Transient(last))
}

// Backoff returns the jittered delay before the retry following attempt.
func (p *Policy) Backoff(attempt int) time.Duration {
	d := p.cfg.Base
	for i := 1; i < attempt && d < p.cfg.Max; i++ {
		d *= 2
	}
	if d > p.cfg.Max {
		d = p.cfg.Max
	}
	return p.jitter(d)
}

type retryAfterer interface {
	RetryAfter() time.Duration
}

func retryAfter(err error) time.Duration {
	var ra retryAfterer
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0
}

// equalJitter keeps half of d and randomizes the other half.
func equalJitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(half+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
