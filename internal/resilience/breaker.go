// Package resilience stops the bridge from spawning a tool that keeps
// failing to run.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker counts consecutive transport failures of the tool. After
// maxFailures of them it opens and rejects calls until cooldown has
// elapsed; then a single trial call is let through.
//
// The outcome of a call is reported separately from the admission check
// because tool invocations complete asynchronously.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	trial       bool
	now         func() time.Time
}

// NewBreaker returns a breaker that opens after maxFailures consecutive
// failures. A maxFailures of zero or less disables it.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Allow returns nil if a call may proceed and ErrCircuitOpen otherwise.
func (b *Breaker) Allow() error {
	if b == nil || b.maxFailures <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.trial = true
		return nil
	case StateHalfOpen:
		if b.trial {
			return ErrCircuitOpen
		}
		b.trial = true
	}
	return nil
}

// Success records a call that reached the tool.
func (b *Breaker) Success() {
	if b == nil || b.maxFailures <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trial = false
	b.state = StateClosed
}

// Failure records a call that could not reach the tool. It reports whether
// the breaker is open afterwards.
func (b *Breaker) Failure() bool {
	if b == nil || b.maxFailures <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.trial = false
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
	return b.state == StateOpen
}

func (b *Breaker) State() State {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
