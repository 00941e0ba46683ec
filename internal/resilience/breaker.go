// Package resilience guards provider calls with circuit breakers and fails
// over from a primary provider to configured fallbacks.
//
// A [Breaker] opens after a run of consecutive failures and rejects calls
// until a cool-down has passed, then lets a few probe calls through. A
// [Group] keeps one breaker per provider and tries them in order.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota
	// Open rejects calls until the cool-down has passed.
	Open
	// HalfOpen lets a limited number of probe calls through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults.
type BreakerConfig struct {
	// MaxFailures is the run of consecutive failures that opens the breaker.
	// Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful half-open calls needed to close the
	// breaker again. Default: 1.
	Probes int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
	return c
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inflight int
	passed   int
}

// NewBreaker returns a closed breaker labelled name in logs.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	return &Breaker{name: name, cfg: cfg.withDefaults(), now: time.Now}
}

// Do runs fn unless the breaker is open and records its outcome. It returns
// [ErrOpen] without calling fn when the call is rejected.
func (b *Breaker) Do(fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.record(probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrOpen
		}
		b.state = HalfOpen
		b.inflight, b.passed = 0, 0
		slog.Info("circuit half-open", "provider", b.name)
	}
	if b.state == HalfOpen {
		if b.inflight+b.passed >= b.cfg.Probes {
			return false, ErrOpen
		}
		b.inflight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.inflight--
	}
	switch {
	case err != nil && (probe || b.state == HalfOpen):
		b.trip()
	case err != nil:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.trip()
		}
	case probe:
		b.passed++
		if b.passed >= b.cfg.Probes {
			b.state = Closed
			b.failures = 0
			slog.Info("circuit closed", "provider", b.name)
		}
	default:
		b.failures = 0
	}
}

// trip opens the breaker. b.mu must be held.
func (b *Breaker) trip() {
	if b.state != Open {
		slog.Warn("circuit opened", "provider", b.name, "failures", b.failures)
	}
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
}

// State reports the current state. An open breaker whose cool-down has
// passed reports [HalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures, b.inflight, b.passed = 0, 0, 0
}
