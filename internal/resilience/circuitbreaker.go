// Package resilience implements the per-endpoint circuit breaker and retry
// backoff used by the RPC transport client (spec.md §4.3), grounded on
// r3e-network-service_layer's infrastructure/resilience hand-rolled
// CircuitBreaker (chosen over that repo's alternate gobreaker-backed
// implementation — see DESIGN.md).
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit breaker states (spec.md §4.3).
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
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker is open and the cool-down
// has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures a CircuitBreaker. Defaults match spec.md §6:
// failure_threshold=5, open_timeout=30s, half_open_probes=1.
type Config struct {
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenProbes   int
	OnStateChange    func(from, to State)
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, OpenTimeout: 30 * time.Second, HalfOpenProbes: 1}
}

// CircuitBreaker is a per-endpoint guard that stops outbound calls to a
// consistently failing peer for a cool-down interval (spec.md glossary).
type CircuitBreaker struct {
	mu           sync.Mutex
	cfg          Config
	state        State
	failures     int
	halfOpenUsed int
	openedAt     time.Time
}

// New creates a CircuitBreaker, applying spec defaults for any zero field.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a new call may proceed, transitioning
// OPEN->HALF_OPEN once the cool-down has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.cfg.OpenTimeout {
			cb.transition(StateHalfOpen)
			cb.halfOpenUsed = 1
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenUsed >= cb.cfg.HalfOpenProbes {
			return ErrCircuitOpen
		}
		cb.halfOpenUsed++
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes the breaker and resets the failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateClosed)
	case StateClosed:
		cb.failures = 0
	}
}

// RecordFailure counts a failure, opening the breaker at the configured
// threshold (or immediately, if the failing probe was a half-open probe).
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateOpen)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.halfOpenUsed = 0
	if to == StateOpen {
		cb.openedAt = time.Now()
	}
	if cb.cfg.OnStateChange != nil {
		go cb.cfg.OnStateChange(from, to)
	}
}
