package providers

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned while a service's breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker keeps one breaker per external service (openai, huggingface, elevenlabs).
type CircuitBreaker struct {
	breakers map[string]*Breaker
	logger   logrus.FieldLogger
	mu       sync.RWMutex

	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration
}

// Breaker represents a single circuit breaker
type Breaker struct {
	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration

	failures    uint32
	successes   uint32
	lastFailure time.Time
	state       BreakerState
	mu          sync.Mutex
}

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// NewCircuitBreaker opens after 5 consecutive failures, waits 30s, and closes
// again after 2 successes in half-open state.
func NewCircuitBreaker(logger logrus.FieldLogger) *CircuitBreaker {
	return NewCircuitBreakerWithSettings(5, 2, 30*time.Second, logger)
}

func NewCircuitBreakerWithSettings(failures, successes uint32, timeout time.Duration, logger logrus.FieldLogger) *CircuitBreaker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CircuitBreaker{
		breakers:         make(map[string]*Breaker),
		logger:           logger,
		failureThreshold: failures,
		successThreshold: successes,
		timeout:          timeout,
	}
}

// Execute executes a function with circuit breaker protection
func (cb *CircuitBreaker) Execute(key string, fn func() error) error {
	breaker := cb.getOrCreateBreaker(key)

	if breaker.currentState() == StateOpen {
		return fmt.Errorf("%s: %w", key, ErrCircuitOpen)
	}

	err := fn()

	if err != nil {
		if breaker.recordFailure() {
			cb.logger.WithField("service", key).Warn("Circuit breaker opened")
		}
	} else if breaker.recordSuccess() {
		cb.logger.WithField("service", key).Info("Circuit breaker closed")
	}

	return err
}

func (cb *CircuitBreaker) getOrCreateBreaker(key string) *Breaker {
	cb.mu.RLock()
	breaker, exists := cb.breakers[key]
	cb.mu.RUnlock()

	if exists {
		return breaker
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := cb.breakers[key]; exists {
		return breaker
	}

	breaker = &Breaker{
		failureThreshold: cb.failureThreshold,
		successThreshold: cb.successThreshold,
		timeout:          cb.timeout,
		state:            StateClosed,
	}
	cb.breakers[key] = breaker
	return breaker
}

// currentState moves an expired open breaker to half-open.
func (b *Breaker) currentState() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.lastFailure) > b.timeout {
		b.state = StateHalfOpen
		b.failures = 0
		b.successes = 0
	}
	return b.state
}

// recordFailure reports whether the breaker transitioned to open.
func (b *Breaker) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
			return true
		}
	case StateHalfOpen:
		b.state = StateOpen
		return true
	}
	return false
}

// recordSuccess reports whether the breaker transitioned back to closed.
func (b *Breaker) recordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
			return true
		}
	}
	return false
}

// GetState returns the state of a specific breaker
func (cb *CircuitBreaker) GetState(key string) BreakerState {
	cb.mu.RLock()
	breaker, exists := cb.breakers[key]
	cb.mu.RUnlock()

	if !exists {
		return StateClosed
	}
	return breaker.currentState()
}

// States returns the state name of every breaker seen so far.
func (cb *CircuitBreaker) States() map[string]string {
	cb.mu.RLock()
	keys := make([]string, 0, len(cb.breakers))
	for k := range cb.breakers {
		keys = append(keys, k)
	}
	cb.mu.RUnlock()

	states := make(map[string]string, len(keys))
	for _, k := range keys {
		states[k] = cb.GetState(k).String()
	}
	return states
}

// Reset resets a specific breaker
func (cb *CircuitBreaker) Reset(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if breaker, exists := cb.breakers[key]; exists {
		breaker.mu.Lock()
		breaker.state = StateClosed
		breaker.failures = 0
		breaker.successes = 0
		breaker.mu.Unlock()
	}
}
