// Package resilience guards upstream data providers with a circuit breaker
// so a failing provider is skipped quickly instead of timing out per ticker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "basket-index/internal/errors"
)

// State represents the state of a circuit breaker.
type State string

const (
	StateClosed   State = "CLOSED"    // Normal operation
	StateOpen     State = "OPEN"      // Failing, rejecting calls
	StateHalfOpen State = "HALF_OPEN" // Probing whether the upstream recovered
)

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes needed to close.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing again.
	Cooldown time.Duration
}

// DefaultConfig returns the breaker settings used for market data providers.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	probing         bool
	openedAt        time.Time
	lastStateChange time.Time

	totalCalls    int64
	totalFailures int64
	totalRejected int64
}

// New creates a closed breaker.
func New(name string, config Config) *Breaker {
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	b := &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
	b.lastStateChange = b.now()
	return b
}

// Execute runs fn unless the circuit is open. Only upstream failures count
// against the circuit; a ticker the provider does not know, or a caller
// giving up, says nothing about the provider's health. While half-open a
// single call probes the upstream and concurrent calls are rejected.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := b.allow()
	if err != nil {
		return err
	}

	err = fn(ctx)
	switch {
	case err == nil:
		b.recordSuccess(probe)
	case countsAsFailure(err):
		b.recordFailure(probe)
	default:
		b.release(probe)
	}
	return err
}

// Do runs fn through b and returns its result.
func Do[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

func countsAsFailure(err error) bool {
	return !errors.Is(err, apperrors.ErrNotFound) &&
		!errors.Is(err, apperrors.ErrProviderNotCapable) &&
		!errors.Is(err, context.Canceled)
}

// allow admits a call and reports whether it is the half-open probe.
func (b *Breaker) allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	if b.config.FailureThreshold <= 0 {
		return false, nil
	}

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.totalRejected++
			return false, fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}
		b.transitionTo(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.probing {
			b.totalRejected++
			return false, fmt.Errorf("%s: probe in flight: %w", b.name, ErrCircuitOpen)
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

// release ends a probe whose outcome said nothing about the upstream.
func (b *Breaker) release(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *Breaker) recordSuccess(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}
	switch b.state {
	case StateHalfOpen:
		if !probe {
			return
		}
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) recordFailure(probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}
	b.totalFailures++
	if b.config.FailureThreshold <= 0 {
		return
	}

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		if probe {
			b.transitionTo(StateOpen)
		}
	}
}

func (b *Breaker) transitionTo(state State) {
	b.state = state
	b.lastStateChange = b.now()
	if state == StateOpen {
		b.openedAt = b.lastStateChange
	}
	b.failures = 0
	b.successes = 0
	b.probing = false
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// HealthCheck reports an open circuit as unhealthy.
func (b *Breaker) HealthCheck(ctx context.Context) error {
	if b.State() == StateOpen {
		return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
	}
	return nil
}

// Stats holds circuit breaker statistics.
type Stats struct {
	Name            string
	State           State
	TotalCalls      int64
	TotalFailures   int64
	TotalRejected   int64
	LastStateChange time.Time
}

// Stats returns circuit breaker statistics.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Name:            b.name,
		State:           b.state,
		TotalCalls:      b.totalCalls,
		TotalFailures:   b.totalFailures,
		TotalRejected:   b.totalRejected,
		LastStateChange: b.lastStateChange,
	}
}
