// Package resolve finds a person's homepage and hosting account by running
// ordered strategy cascades.
//
// A cascade stops at the first HighConfidence result. The first BestGuess is
// kept as the candidate and, unless HaltOnBestGuess is off, also stops the
// cascade. Strategy errors and timeouts are recorded as Failed attempts and
// otherwise treated as non-matches. When nothing matches the result is
// NotFound.
package resolve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/redactyl/leaktrace/internal/types"
)

// Strategy is one way of resolving a value for an entity.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, e types.Entity) (types.Resolution[string], error)
}

// Attempt records what one strategy produced.
type Attempt struct {
	Strategy string
	Result   types.Resolution[string]
}

// Outcome is the cascade's answer plus the per-strategy trace.
type Outcome struct {
	Result   types.Resolution[string]
	Attempts []Attempt
}

// Options tune a cascade.
type Options struct {
	HaltOnBestGuess bool
	// StrategyTimeout bounds each strategy; zero means no bound.
	StrategyTimeout time.Duration
	Logger          *zap.Logger
}

// Cascade runs strategies strictly in priority order.
type Cascade struct {
	name       string
	strategies []Strategy
	opts       Options
	log        *zap.Logger
}

// NewCascade builds a cascade named for logging purposes.
func NewCascade(name string, opts Options, strategies ...Strategy) *Cascade {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Cascade{name: name, strategies: strategies, opts: opts, log: log}
}

// Resolve runs the cascade for e.
func (c *Cascade) Resolve(ctx context.Context, e types.Entity) Outcome {
	var (
		out       Outcome
		candidate types.Resolution[string]
	)
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			if candidate.IsSet() {
				out.Result = candidate
			} else {
				out.Result = types.Failed[string](err.Error())
			}
			return out
		}

		r := c.run(ctx, s, e)
		out.Attempts = append(out.Attempts, Attempt{Strategy: s.Name(), Result: r})
		c.log.Debug("strategy finished",
			zap.String("cascade", c.name),
			zap.String("strategy", s.Name()),
			zap.String("entity", e.Name),
			zap.Stringer("result", r))

		switch r.Tier() {
		case types.TierHighConfidence:
			out.Result = r
			return out
		case types.TierBestGuess:
			if !candidate.IsSet() {
				candidate = r
			}
			if c.opts.HaltOnBestGuess {
				out.Result = candidate
				return out
			}
		}
	}
	if candidate.IsSet() {
		out.Result = candidate
	} else {
		out.Result = types.NotFound[string]()
	}
	return out
}

func (c *Cascade) run(ctx context.Context, s Strategy, e types.Entity) types.Resolution[string] {
	if c.opts.StrategyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.StrategyTimeout)
		defer cancel()
	}
	r, err := s.Resolve(ctx, e)
	if err != nil {
		c.log.Info("strategy failed",
			zap.String("cascade", c.name),
			zap.String("strategy", s.Name()),
			zap.String("entity", e.Name),
			zap.Error(err))
		return types.Failed[string](err.Error())
	}
	if !r.IsSet() {
		return types.NotFound[string]()
	}
	return r
}
