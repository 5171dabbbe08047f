package realtime

import (
	"sync"
	"time"
)

// BackoffConfig holds reconnect delay configuration
type BackoffConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // <= 0 retries forever
}

// Backoff computes capped exponential reconnect delays
type Backoff struct {
	cfg     BackoffConfig
	attempt int
	mu      sync.Mutex
}

// NewBackoff creates a new Backoff
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &Backoff{cfg: cfg}
}

// Next returns the delay before the next attempt and advances the counter.
// ok is false once MaxAttempts retries have been handed out.
func (b *Backoff) Next() (delay time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.MaxAttempts > 0 && b.attempt >= b.cfg.MaxAttempts {
		return 0, false
	}
	delay = Delay(b.cfg.BaseDelay, b.cfg.MaxDelay, b.attempt)
	b.attempt++
	return delay, true
}

// Reset zeroes the attempt counter
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.mu.Unlock()
}

// Attempt returns the number of retries handed out since the last reset
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

// Delay returns min(base * 2^attempt, max)
func Delay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
