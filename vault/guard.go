package vault

import (
	"sync"
	"time"
)

const (
	// DefaultMaxFailures is the number of consecutive failures that triggers
	// a hard lockout.
	DefaultMaxFailures = 5
	// DefaultLockout is the hard lockout duration.
	DefaultLockout = 15 * time.Minute
	// DefaultBackoffStep is added per failure below the threshold.
	DefaultBackoffStep = 5 * time.Second
	// DefaultMaxBackoff caps the per-failure backoff.
	DefaultMaxBackoff = 30 * time.Second
)

// LockoutState is a snapshot of a Guard.
type LockoutState struct {
	Failures    int       `json:"failures"`
	LockedUntil time.Time `json:"lockedUntil,omitzero"`
}

// Guard throttles unlock attempts for one vault. It is safe for concurrent
// use. Time is always supplied by the caller.
type Guard struct {
	mu    sync.Mutex
	state LockoutState

	maxFailures int
	lockout     time.Duration
	step        time.Duration
	maxBackoff  time.Duration
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithMaxFailures sets the failure count that triggers a hard lockout.
func WithMaxFailures(n int) GuardOption {
	return func(g *Guard) {
		if n > 0 {
			g.maxFailures = n
		}
	}
}

// WithLockoutDuration sets the hard lockout duration.
func WithLockoutDuration(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.lockout = d
		}
	}
}

// WithBackoff sets the per-failure backoff step and its cap.
func WithBackoff(step, maxBackoff time.Duration) GuardOption {
	return func(g *Guard) {
		if step >= 0 && maxBackoff >= 0 {
			g.step = step
			g.maxBackoff = maxBackoff
		}
	}
}

// NewGuard returns a Guard with the default thresholds.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		maxFailures: DefaultMaxFailures,
		lockout:     DefaultLockout,
		step:        DefaultBackoffStep,
		maxBackoff:  DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAllowed reports whether an attempt may proceed at now. It returns a
// *LockedOutError while a backoff or lockout is in force. Once a hard
// lockout has elapsed the failure count starts again from zero.
func (g *Guard) CheckAllowed(now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Before(g.state.LockedUntil) {
		return &LockedOutError{
			Until:     g.state.LockedUntil,
			Remaining: g.state.LockedUntil.Sub(now),
		}
	}
	if g.state.Failures >= g.maxFailures {
		g.state = LockoutState{}
	}
	return nil
}

// RecordFailure counts a failed attempt at now and returns how long further
// attempts are refused.
func (g *Guard) RecordFailure(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state.Failures++
	wait := g.lockout
	if g.state.Failures < g.maxFailures {
		wait = min(time.Duration(g.state.Failures)*g.step, g.maxBackoff)
	}
	g.state.LockedUntil = now.Add(wait)
	return wait
}

// RecordSuccess clears all failure state.
func (g *Guard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = LockoutState{}
}

// State returns a snapshot of the guard.
func (g *Guard) State() LockoutState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
