// Package breaker implements a per-dependency circuit breaker.
//
// Every outbound call (vector-type search, embedding generation) goes through
// a Breaker. Consecutive failures trip it open; while open, calls fail fast
// without touching the dependency until the reset timeout elapses, after which
// a single trial call probes for recovery.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolvec/internal/domain"
	"github.com/kailas-cloud/toolvec/internal/metrics"
)

// State is the breaker state machine position.
type State int

const (
	// Closed admits every call.
	Closed State = iota
	// Open rejects every call until the reset timeout elapses.
	Open
	// HalfOpen admits exactly one trial call.
	HalfOpen
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Defaults chosen per dependency class: the vector store gets the stricter
// reset, LLM-backed embedding the more tolerant one.
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultEmbedResetTimeout = 60 * time.Second
)

// Config holds breaker tuning.
type Config struct {
	Threshold    int           // consecutive failures before tripping
	ResetTimeout time.Duration // open duration before a half-open probe
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	return c
}

// Breaker guards a single external dependency. All state transitions are
// serialized by the internal mutex; Do itself runs the wrapped call outside
// the lock.
type Breaker struct {
	name   string
	cfg    Config
	logger *zap.Logger

	now func() time.Time // injectable for tests

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// New creates a closed breaker for the named dependency.
func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	b := &Breaker{name: name, cfg: cfg.withDefaults(), logger: logger, now: time.Now}
	metrics.BreakerState.WithLabelValues(name).Set(float64(Closed))
	return b
}

// State returns the current state, accounting for reset-timeout expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		return HalfOpen
	}
	return b.state
}

// Failures returns the consecutive-failure counter.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Do invokes fn under the breaker contract. When the breaker is open and the
// reset timeout has not elapsed, fn is never invoked and ErrCircuitOpen is
// returned. Exactly one caller wins the half-open probe; concurrent callers
// are rejected until it settles.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		b.recordFailure(err)
		return err
	}

	b.recordSuccess()
	return nil
}

// admit decides whether a call may proceed, transitioning Open -> HalfOpen
// when the reset timeout has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			return fmt.Errorf("%s: %w", b.name, domain.ErrCircuitOpen)
		}
		b.setState(HalfOpen)
		b.probing = true
		b.logger.Info("Circuit breaker half-open, admitting trial call",
			zap.String("breaker", b.name))
		return nil
	case HalfOpen:
		if b.probing {
			return fmt.Errorf("%s: trial in flight: %w", b.name, domain.ErrCircuitOpen)
		}
		b.probing = true
		return nil
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	b.failures = 0
	if b.state != Closed {
		b.logger.Info("Circuit breaker closed after successful trial",
			zap.String("breaker", b.name))
		b.setState(Closed)
	}
}

func (b *Breaker) recordFailure(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	metrics.BreakerFailuresTotal.WithLabelValues(b.name).Inc()

	if b.state == HalfOpen {
		// Failed trial reopens immediately and restarts the reset timer.
		b.probing = false
		b.setState(Open)
		b.logger.Warn("Circuit breaker reopened: trial call failed",
			zap.String("breaker", b.name), zap.Error(cause))
		return
	}

	b.failures++
	if b.state == Closed && b.failures >= b.cfg.Threshold {
		b.setState(Open)
		b.logger.Warn("Circuit breaker opened",
			zap.String("breaker", b.name),
			zap.Int("failures", b.failures),
			zap.Error(cause))
	}
}

// setState mutates the state and mirrors it to the metric. Callers hold mu.
func (b *Breaker) setState(s State) {
	b.state = s
	metrics.BreakerState.WithLabelValues(b.name).Set(float64(s))
}
