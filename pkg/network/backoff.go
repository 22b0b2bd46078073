package network

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff is an exponential retry policy with a bounded number of attempts.
// Delays grow from the base by the multiplier and stop growing at the cap.
// There is no jitter, so both ends of a test see the same schedule.
type Backoff struct {
	exp         *backoff.ExponentialBackOff
	maxAttempts int
	attempt     int
}

func NewBackoff(base time.Duration, multiplier float64, max time.Duration, maxAttempts int) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	if max < base {
		max = base
	}
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          multiplier,
		MaxInterval:         max,
	}
	exp.Reset()
	return &Backoff{exp: exp, maxAttempts: maxAttempts}
}

// Next returns the delay before the next attempt.
// It returns false when the attempts are exhausted.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.attempt >= b.maxAttempts {
		return 0, false
	}
	b.attempt++
	return b.exp.NextBackOff(), true
}

// Attempt is the number of the last attempt handed out by Next.
func (b *Backoff) Attempt() int { return b.attempt }

func (b *Backoff) MaxAttempts() int { return b.maxAttempts }

func (b *Backoff) Exhausted() bool { return b.attempt >= b.maxAttempts }

func (b *Backoff) Reset() { b.attempt = 0; b.exp.Reset() }
