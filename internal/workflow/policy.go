package workflow

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/darmiel/lastword/internal/config"
)

// ExhaustionPolicy decides what happens when a step uses up its retry budget.
type ExhaustionPolicy string

const (
	// ExhaustionFail moves the instance to Failed.
	ExhaustionFail ExhaustionPolicy = "fail"
	// ExhaustionContinue logs the exhaustion and moves on as if the step had succeeded.
	ExhaustionContinue ExhaustionPolicy = "continue"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 30 * time.Second
	DefaultMultiplier  = 2.0
	DefaultMaxDelay    = time.Hour
)

// RetryPolicy bounds the attempts of a single step. The attempt counter lives in the
// persisted instance, so a restart continues the budget instead of resetting it.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	OnExhausted ExhaustionPolicy
}

// NotifyPolicy is the default policy of the notify step: an owner who was never told
// about a countdown cannot cancel it, so exhaustion fails the instance.
func NotifyPolicy() RetryPolicy {
	return RetryPolicy{OnExhausted: ExhaustionFail}.normalized(ExhaustionFail)
}

// ReleasePolicy is the default policy of the release step: exhaustion is logged and the
// instance still completes.
func ReleasePolicy() RetryPolicy {
	return RetryPolicy{OnExhausted: ExhaustionContinue}.normalized(ExhaustionContinue)
}

// PolicyFromConfig converts a config block, filling gaps with defaults.
func PolicyFromConfig(c config.RetryConfig, fallback ExhaustionPolicy) (RetryPolicy, error) {
	p := RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		Multiplier:  c.Multiplier,
		MaxDelay:    c.MaxDelay,
		OnExhausted: ExhaustionPolicy(c.OnExhausted),
	}
	switch p.OnExhausted {
	case "", ExhaustionFail, ExhaustionContinue:
	default:
		return RetryPolicy{}, fmt.Errorf("unknown exhaustion policy '%s'", p.OnExhausted)
	}
	return p.normalized(fallback), nil
}

func (p RetryPolicy) normalized(fallback ExhaustionPolicy) RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.OnExhausted == "" {
		p.OnExhausted = fallback
	}
	return p
}

// Exhausted reports whether failures consumed the whole budget.
func (p RetryPolicy) Exhausted(failures int) bool {
	return failures >= p.MaxAttempts
}

// Delay returns how long to wait before the next attempt after the given number of failures:
// BaseDelay * Multiplier^(failures-1), capped at MaxDelay. The schedule is deterministic.
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxDelay,
	}
	b.Reset()

	var d time.Duration
	for i := 0; i < failures; i++ {
		d = b.NextBackOff()
	}
	return d
}
