package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lychee-technology/scyllastore"
)

// CircuitBreaker is a lightweight in-memory circuit breaker guarding engine calls.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     []time.Time
	threshold    int
	window       time.Duration
	openUntil    time.Time
	openDuration time.Duration
}

// NewCircuitBreaker creates a configured circuit breaker. A non-positive threshold
// disables breaking and yields nil; every method is nil-safe.
func NewCircuitBreaker(threshold int, window, openDuration time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		return nil
	}
	return &CircuitBreaker{
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		failures:     make([]time.Time, 0, threshold),
	}
}

func newBreakerFromConfig(cfg scyllastore.BreakerConfig) *CircuitBreaker {
	return NewCircuitBreaker(cfg.Threshold, cfg.Window, cfg.OpenDuration)
}

// RecordFailure records a failure occurrence and opens the breaker if threshold exceeded.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	// drop old failures outside the window
	cutoff := now.Add(-cb.window)
	i := 0
	for ; i < len(cb.failures); i++ {
		if cb.failures[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		cb.failures = append([]time.Time{}, cb.failures[i:]...)
	}
	cb.failures = append(cb.failures, now)

	if len(cb.failures) >= cb.threshold {
		cb.openUntil = now.Add(cb.openDuration)
	}
}

// RecordSuccess resets failure history when operations succeed.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.openUntil = time.Time{}
}

// IsOpen returns true if the breaker is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	if cb == nil {
		return false
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.openUntil)
}

// Record classifies an operation outcome. Caller mistakes (bad identifiers, bad filters,
// unsupported search) say nothing about engine health and are ignored.
func (cb *CircuitBreaker) Record(err error) {
	if cb == nil {
		return
	}
	switch {
	case err == nil:
		cb.RecordSuccess()
	case errors.Is(err, context.Canceled):
	case scyllastore.IsReadError(err), scyllastore.IsWriteError(err), scyllastore.IsConnectionError(err):
		cb.RecordFailure()
	}
}
