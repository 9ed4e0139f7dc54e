package llm

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState is the breaker's position in the closed/open/half-open cycle.
type CircuitState int

const (
	// CircuitClosed admits every request.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests until the reset window elapses.
	CircuitOpen
	// CircuitHalfOpen admits a single probe to test recovery.
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
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes when the breaker trips and when it probes again.
type CircuitBreakerConfig struct {
	Threshold  int           // consecutive failures before tripping
	ResetAfter time.Duration // open duration before a probe is allowed
}

// DefaultCircuitBreakerConfig trips after five consecutive failures and
// probes again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: 5, ResetAfter: 30 * time.Second}
}

// CircuitBreaker keeps a failing advisory endpoint from being hammered.
// Consecutive failures trip it open; once ResetAfter has elapsed a single
// probe request is let through, and its outcome decides between closing
// and re-opening.
type CircuitBreaker struct {
	mu          sync.RWMutex
	cfg         CircuitBreakerConfig
	failures    int
	lastFailure time.Time
	state       CircuitState
}

// NewCircuitBreaker creates a closed breaker with the given thresholds.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: CircuitClosed}
}

// Allow reports whether a request may proceed. While open it returns an
// error describing the failure streak; after the reset window it flips to
// half-open and admits exactly one probe.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		idle := time.Since(cb.lastFailure)
		if idle > cb.cfg.ResetAfter {
			cb.state = CircuitHalfOpen
			return true, nil
		}
		return false, fmt.Errorf("circuit breaker open: AI advisory endpoint appears to be down (failed %d times, last failure %v ago)",
			cb.failures, idle.Round(time.Second))
	case CircuitHalfOpen:
		// A probe is already in flight.
		return false, fmt.Errorf("circuit breaker half-open: waiting on recovery probe")
	default:
		return true, nil
	}
}

// RecordSuccess closes the breaker and clears the failure streak.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure extends the failure streak. A failed half-open probe
// re-opens the breaker immediately; in the closed state the threshold
// decides.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.Threshold {
		cb.state = CircuitOpen
	}
}

// State returns the breaker's current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// ConsecutiveFailures returns the length of the current failure streak.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Reset forces the breaker closed regardless of recent failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = CircuitClosed
}
