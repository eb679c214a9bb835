// Package resilience guards the pipeline's external calls: per-operation
// circuit breakers and retry with backoff for the LLM API, plus dead-letter
// classification for documents that fail processing.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of one circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets requests flow through normally.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests immediately after repeated failures.
	CircuitOpen
	// CircuitHalfOpen admits probe requests to test recovery.
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

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls when a breaker trips and recovers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before admitting a
	// probe. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMaxProbes is how many probes must succeed before the circuit
	// closes again. Default: 1.
	HalfOpenMaxProbes int

	// ShouldTrip decides which errors count toward the threshold. If nil,
	// every error counts.
	ShouldTrip func(err error) bool

	// OnStateChange is called on each state transition.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for LLM calls.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// CircuitBreaker protects one external operation.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	consecutiveFailures int
	lastFailureTime     time.Time
	halfOpenSuccesses   int

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = 1
	}
	return &CircuitBreaker{
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Execute runs fn through the breaker: ErrCircuitOpen when the circuit is
// open, otherwise fn's own result, with the outcome recorded against the
// failure counter.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allowRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.recordResult(err)
	return err
}

// ExecuteVal is Execute for calls that produce a value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allowRequest(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	cb.recordResult(err)
	return val, err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// An open circuit past its reset timeout reports half-open.
	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.lastFailureTime) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.lastFailureTime) >= cb.cfg.ResetTimeout {
			cb.transition(CircuitHalfOpen)
			return nil // probe
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	shouldTrip := cb.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = func(e error) bool { return e != nil }
	}

	if err == nil || !shouldTrip(err) {
		switch cb.state {
		case CircuitHalfOpen:
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.cfg.HalfOpenMaxProbes {
				cb.transition(CircuitClosed)
				cb.consecutiveFailures = 0
				cb.halfOpenSuccesses = 0
			}
		case CircuitClosed:
			cb.consecutiveFailures = 0
		}
		return
	}

	cb.consecutiveFailures++
	cb.lastFailureTime = cb.nowFunc()

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure during a probe reopens the circuit.
		cb.transition(CircuitOpen)
		cb.halfOpenSuccesses = 0
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// ServiceBreakers keys circuit breakers by operation so one failing LLM
// operation does not take down the others.
type ServiceBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	cfg      CircuitBreakerConfig
}

// NewServiceBreakers creates a registry of per-operation circuit breakers.
func NewServiceBreakers(cfg CircuitBreakerConfig) *ServiceBreakers {
	return &ServiceBreakers{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
	}
}

// Get returns the breaker for the named operation, creating one if needed.
func (sb *ServiceBreakers) Get(operation string) *CircuitBreaker {
	sb.mu.RLock()
	cb, ok := sb.breakers[operation]
	sb.mu.RUnlock()
	if ok {
		return cb
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if cb, ok = sb.breakers[operation]; ok {
		return cb
	}
	cb = NewCircuitBreaker(sb.cfg)
	sb.breakers[operation] = cb
	return cb
}

// States returns a snapshot of every breaker's state.
func (sb *ServiceBreakers) States() map[string]CircuitState {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	states := make(map[string]CircuitState, len(sb.breakers))
	for name, cb := range sb.breakers {
		states[name] = cb.State()
	}
	return states
}
