package rategovernor

import (
	"sync"
	"time"
)

// BreakerState mirrors the exported values used by internal/metrics'
// CircuitBreakerState gauge.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

const (
	windowSize         = 100
	minCallsToEvaluate = 10
	failureThreshold   = 0.5
	openStateWait      = 30 * time.Second
)

// CircuitBreaker trips when the failure rate over the last windowSize calls
// crosses failureThreshold, after at least minCallsToEvaluate calls have been
// observed. While open, calls are rejected outright for openStateWait; the
// next call after that is let through as a half-open trial.
type CircuitBreaker struct {
	mu sync.Mutex

	state     BreakerState
	openedAt  time.Time
	results   []bool // ring buffer, true = success
	nextIdx   int
	callCount int

	now func() time.Time
}

// NewCircuitBreaker builds a closed breaker.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		state:   StateClosed,
		results: make([]bool, 0, windowSize),
		now:     time.Now,
	}
}

// Allow reports whether a call may proceed. A half-open trial call must be
// completed with RecordResult before another Allow will return true.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= openStateWait {
			cb.state = StateHalfOpen
			return true
		}
		return false
	case StateHalfOpen:
		// A trial is already in flight; reject concurrent callers until the
		// trial's RecordResult resolves the state.
		return false
	}
	return false
}

// RecordResult records the outcome of a call that Allow permitted.
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		if success {
			cb.state = StateClosed
			cb.results = cb.results[:0]
			cb.nextIdx = 0
			cb.callCount = 0
		} else {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
		return
	}

	cb.record(success)
	cb.callCount++

	if cb.callCount < minCallsToEvaluate {
		return
	}

	if cb.failureRateLocked() >= failureThreshold {
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) record(success bool) {
	if len(cb.results) < windowSize {
		cb.results = append(cb.results, success)
		return
	}
	cb.results[cb.nextIdx] = success
	cb.nextIdx = (cb.nextIdx + 1) % windowSize
}

func (cb *CircuitBreaker) failureRateLocked() float64 {
	if len(cb.results) == 0 {
		return 0
	}
	failures := 0
	for _, ok := range cb.results {
		if !ok {
			failures++
		}
	}
	return float64(failures) / float64(len(cb.results))
}

// State returns the current breaker state, for gauge export.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
