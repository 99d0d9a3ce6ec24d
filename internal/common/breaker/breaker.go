// internal/common/breaker/breaker.go
package breaker

import (
	"sync"
	"time"
)

// DefaultCooldown is how long an open breaker waits before letting a
// single trial call through.
const DefaultCooldown = 30 * time.Second

// Breaker counts consecutive failures against external dependencies.
// Once the threshold is reached, Allow returns false and remaining calls
// short-circuit. After the cooldown elapses the breaker goes half-open:
// one trial call is let through, and its outcome either closes the
// breaker (Success) or re-arms the cooldown (Failure).
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openedAt  time.Time
	now       func() time.Time
}

func New(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	return &Breaker{threshold: threshold, cooldown: DefaultCooldown, now: time.Now}
}

// WithCooldown overrides the open-state wait before a half-open trial.
func (b *Breaker) WithCooldown(d time.Duration) *Breaker {
	if d > 0 {
		b.cooldown = d
	}
	return b
}

// WithClock overrides the time source (tests).
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow reports whether the next external call may proceed. An open
// breaker past its cooldown grants exactly one half-open trial; the
// open window is pushed forward so concurrent callers stay gated until
// the trial resolves.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cooldown {
		b.openedAt = b.now()
		return true
	}
	return false
}

// Success closes the breaker by resetting the consecutive failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Failure records one failed external call. The failure that trips the
// threshold, and any failure while open (a lost half-open trial), starts
// a fresh cooldown.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker has tripped. Unlike Allow it never
// grants a trial.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold
}
