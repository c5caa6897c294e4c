package types

import "fmt"

// Tier is the confidence classification of a resolved value.
type Tier int

const (
	// TierUnset marks a resolution that has not been produced yet.
	TierUnset Tier = iota
	TierHighConfidence
	TierBestGuess
	TierNotFound
	TierFailed
)

func (t Tier) String() string {
	switch t {
	case TierHighConfidence:
		return "high-confidence"
	case TierBestGuess:
		return "best-guess"
	case TierNotFound:
		return "not-found"
	case TierFailed:
		return "failed"
	default:
		return "unset"
	}
}

// Resolution is a tagged result: exactly one of HighConfidence(value),
// BestGuess(value), NotFound or Failed(reason). Value is meaningful only for
// the first two tiers.
type Resolution[T any] struct {
	tier   Tier
	value  T
	reason string
}

func HighConfidence[T any](v T) Resolution[T] {
	return Resolution[T]{tier: TierHighConfidence, value: v}
}

func BestGuess[T any](v T) Resolution[T] {
	return Resolution[T]{tier: TierBestGuess, value: v}
}

func NotFound[T any]() Resolution[T] {
	return Resolution[T]{tier: TierNotFound}
}

func Failed[T any](reason string) Resolution[T] {
	return Resolution[T]{tier: TierFailed, reason: reason}
}

// Tier reports which variant is active.
func (r Resolution[T]) Tier() Tier { return r.tier }

// IsSet reports whether any variant has been recorded.
func (r Resolution[T]) IsSet() bool { return r.tier != TierUnset }

// Found reports whether the resolution carries a value.
func (r Resolution[T]) Found() bool {
	return r.tier == TierHighConfidence || r.tier == TierBestGuess
}

// Get returns the value and whether one is present.
func (r Resolution[T]) Get() (T, bool) {
	if !r.Found() {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Reason is the failure description of a Failed resolution.
func (r Resolution[T]) Reason() string { return r.reason }

// Cap lowers a HighConfidence resolution to BestGuess. Other tiers are
// returned unchanged.
func (r Resolution[T]) Cap() Resolution[T] {
	if r.tier == TierHighConfidence {
		r.tier = TierBestGuess
	}
	return r
}

func (r *Resolution[T]) set(next Resolution[T]) bool {
	if r.tier != TierUnset || next.tier == TierUnset {
		return false
	}
	*r = next
	return true
}

func (r Resolution[T]) String() string {
	switch r.tier {
	case TierHighConfidence, TierBestGuess:
		return fmt.Sprintf("%s(%v)", r.tier, r.value)
	case TierFailed:
		return fmt.Sprintf("failed(%s)", r.reason)
	default:
		return r.tier.String()
	}
}
