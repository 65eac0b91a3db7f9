package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling the spreadsheet endpoint after repeated failures
// and lets probe calls through once the open timeout has elapsed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	onStateChange    func(from, to State)
	now              func() time.Time
}

// Config holds circuit breaker parameters.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	OnStateChange    func(from, to State)
}

// New creates a new CircuitBreaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		onStateChange:    cfg.OnStateChange,
		now:              time.Now,
	}
}

// Call runs fn when the circuit allows it. Context errors from fn do not count as failures.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.transitionLocked(StateHalfOpen)
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.failureCount = 0
			cb.transitionLocked(StateOpen)
		}
		return err
	}

	cb.successCount++
	cb.failureCount = 0
	if cb.state == StateHalfOpen && cb.successCount >= cb.successThreshold {
		cb.transitionLocked(StateClosed)
	}
	return nil
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to
	cb.successCount = 0
	if cb.onStateChange != nil && from != to {
		cb.onStateChange(from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
