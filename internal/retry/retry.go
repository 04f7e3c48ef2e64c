// Package retry implements the bounded retry loop backing the effect
// package's Retry combinators.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	rexerrors "github.com/pelagornis/go-rex/pkg/rex/v1/errors"
)

// Operation is one attempt of the retried work.
type Operation func(ctx context.Context) error

// Config controls the retry loop. Attempts below 1 is normalized to 1,
// BackoffFactor below 1.0 to 1.0, Jitter is clamped to [0, 1].
type Config struct {
	Attempts      int
	Delay         time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64
}

func (c *Config) normalize() {
	if c.Attempts <= 0 {
		c.Attempts = 1
	}
	if c.BackoffFactor < 1.0 {
		c.BackoffFactor = 1.0
	}
	if c.Jitter < 0.0 {
		c.Jitter = 0.0
	} else if c.Jitter > 1.0 {
		c.Jitter = 1.0
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.MaxDelay < 0 {
		c.MaxDelay = 0
	}
}

// Do runs op up to cfg.Attempts times, waiting between attempts on the
// provided clock so tests can drive time. It observes ctx at every wait
// point: a cancelled context ends the loop immediately.
//
// When all attempts fail, Do returns a RetryExhaustedError carrying the
// last attempt's error.
func Do(ctx context.Context, clock clockwork.Clock, cfg Config, op Operation) error {
	cfg.normalize()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr == nil {
				return ctx.Err()
			}
			return rexerrors.NewRetryExhaustedError(attempt-1, lastErr)
		default:
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.Attempts {
			break
		}

		wait := delayFor(cfg, attempt)
		if wait <= 0 {
			continue
		}
		timer := clock.NewTimer(wait)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return rexerrors.NewRetryExhaustedError(attempt, lastErr)
		}
	}

	return rexerrors.NewRetryExhaustedError(cfg.Attempts, lastErr)
}

// delayFor computes the wait before the attempt following 'attempt',
// applying exponential backoff, jitter, and the MaxDelay cap.
func delayFor(cfg Config, attempt int) time.Duration {
	base := float64(cfg.Delay)
	if cfg.BackoffFactor > 1.0 && attempt > 1 {
		base *= math.Pow(cfg.BackoffFactor, float64(attempt-1))
	}
	if base > float64(math.MaxInt64) {
		base = float64(math.MaxInt64)
	}
	wait := time.Duration(base)

	if cfg.Jitter > 0.0 {
		factor := cfg.Jitter * (rand.Float64()*2.0 - 1.0)
		wait += time.Duration(float64(wait) * factor)
		if wait < 0 {
			wait = 0
		}
	}

	if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
		wait = cfg.MaxDelay
	}
	return wait
}
