package session

import (
	"math"
	"math/rand"
	"time"
)

// BaseBackoffDelay returns min(base * multiplier^attempt, max) for a 0-based attempt.
func BaseBackoffDelay(cfg BackoffConfig, attempt int) time.Duration {
	if cfg.BaseDelay <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// NextBackoffDelay adds up to Jitter*delay of random slack to the base delay.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	delay := BaseBackoffDelay(cfg, attempt)
	if cfg.Jitter <= 0 || rng == nil || delay <= 0 {
		return delay
	}
	return delay + time.Duration(rng.Float64()*cfg.Jitter*float64(delay))
}

// Backoff is the reconnect attempt counter and the delay it last produced.
type Backoff struct {
	cfg     BackoffConfig
	rng     *rand.Rand
	Attempt int
	Next    time.Duration
}

func NewBackoff(cfg BackoffConfig, rng *rand.Rand) *Backoff {
	return &Backoff{cfg: cfg, rng: rng}
}

// Fail records a failed attempt and returns the delay before the next one.
func (b *Backoff) Fail() time.Duration {
	b.Next = NextBackoffDelay(b.cfg, b.Attempt, b.rng)
	b.Attempt++
	return b.Next
}

// Reset is called on successful registration.
func (b *Backoff) Reset() {
	b.Attempt = 0
	b.Next = 0
}

// Exhausted reports whether MaxAttempts failures have been recorded.
func (b *Backoff) Exhausted() bool {
	return b.cfg.MaxAttempts > 0 && b.Attempt >= b.cfg.MaxAttempts
}
