package supervisor

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff computes reconnect waits with exponential growth and jitter.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff provides conservative reconnect defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the backoff duration for the given attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	max := b.Max
	if max <= 0 {
		max = 5 * time.Second
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := min
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}

	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}

// RetryState tracks where a connection sits in its reconnect cycle.
type RetryState uint8

const (
	RetryIdle RetryState = iota
	RetryWaiting
	RetryDialing
)

func (s RetryState) String() string {
	switch s {
	case RetryIdle:
		return "idle"
	case RetryWaiting:
		return "waiting"
	case RetryDialing:
		return "dialing"
	default:
		return "unknown"
	}
}

// Reconnector drives the retry cycle for a single upstream connection.
// Attempts only move forward: idle -> waiting -> dialing, then back to
// idle on success or waiting on another failure. The retry goroutine
// and the event loop both touch it, hence the lock.
type Reconnector struct {
	mu      sync.Mutex
	policy  Backoff
	state   RetryState
	attempt int
}

func NewReconnector(policy Backoff) *Reconnector {
	return &Reconnector{policy: policy}
}

// Fail records a connection loss or dial failure and returns how long to
// wait before the next attempt.
func (r *Reconnector) Fail() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt++
	r.state = RetryWaiting
	return r.policy.Next(r.attempt)
}

// Dialing marks the wait as elapsed and the retry in flight.
func (r *Reconnector) Dialing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = RetryDialing
}

// Succeed resets the cycle after a successful reconnect.
func (r *Reconnector) Succeed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt = 0
	r.state = RetryIdle
}

func (r *Reconnector) State() RetryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconnector) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}
