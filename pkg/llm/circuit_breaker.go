package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitState is a provider breaker's position.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig tunes when a provider is taken out of rotation.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int
	// Cooldown is how long an open circuit rejects calls before one probe is let through.
	Cooldown time.Duration
	// OnStateChange, if set, is called outside the lock after every transition.
	OnStateChange func(provider string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after 5 failures and probes after 30s.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: 5, Cooldown: 30 * time.Second}
}

// CircuitBreaker stops calling a provider that keeps failing so a prompt
// run records its failure at once instead of waiting out the call timeout.
type CircuitBreaker struct {
	provider string
	cfg      CircuitBreakerConfig
	now      func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

func NewCircuitBreaker(provider string, cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.Threshold < 1 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &CircuitBreaker{provider: provider, cfg: cfg, now: time.Now}
}

// Allow returns nil when a call may go ahead. After the cooldown an open
// circuit admits a single probe; everything else gets an ErrorTypeCircuitOpen error.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	from := cb.state
	var err error
	switch cb.state {
	case CircuitOpen:
		if wait := cb.cfg.Cooldown - cb.now().Sub(cb.openedAt); wait > 0 {
			err = cb.rejection(fmt.Sprintf("circuit breaker open after %d consecutive failures, retry in %s",
				cb.failures, wait.Round(time.Second)))
			break
		}
		cb.state = CircuitHalfOpen
		cb.probing = true
	case CircuitHalfOpen:
		if cb.probing {
			err = cb.rejection("circuit breaker half-open, probe in flight")
			break
		}
		cb.probing = true
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return err
}

// Record feeds a call's result back. Calls the caller cancelled say nothing
// about provider health and leave the counters alone.
func (cb *CircuitBreaker) Record(err error) {
	if err != nil && (errors.Is(err, context.Canceled) || GetErrorType(err) == ErrorTypeCanceled) {
		cb.mu.Lock()
		cb.probing = false
		cb.mu.Unlock()
		return
	}

	cb.mu.Lock()
	from := cb.state
	cb.probing = false
	if err == nil {
		cb.failures = 0
		cb.state = CircuitClosed
	} else {
		cb.failures++
		if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.Threshold {
			cb.state = CircuitOpen
			cb.openedAt = cb.now()
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// State returns the current state and consecutive failure count.
func (cb *CircuitBreaker) State() (CircuitState, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failures
}

func (cb *CircuitBreaker) rejection(msg string) error {
	return NewErrorWithContext(ErrorTypeCircuitOpen, msg, false, nil, cb.provider, "", 0)
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.provider, from, to)
	}
}
