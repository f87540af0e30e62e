package service

import (
	"sync"
	"time"
)

// Breaker states.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes the circuit breaker wrapping the fast path.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before Closed -> Open
	ResetTimeout     time.Duration // Open -> Half-Open delay
	HalfOpenMax      int           // consecutive successes before Half-Open -> Closed
}

// Breaker is a Closed/Open/Half-Open circuit breaker. It only gates the
// fast path: when the breaker denies a request or the fast path fails, the
// caller falls back to the durable path without surfacing an error.
//
// Mutex-guarded; no background goroutines. The Open -> Half-Open
// transition happens lazily on the first Allow() after the reset timeout.
type Breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig

	state         BreakerState
	failures      int // consecutive failures while Closed
	successes     int // consecutive successes while Half-Open
	inFlight      int // trial requests admitted while Half-Open
	openedAt      time.Time
	onStateChange func(from, to BreakerState)

	now func() time.Time // overridable for tests
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers a hook invoked (under the lock) on every state
// transition. Used for logging and the state gauge.
func (b *Breaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether the fast path may be attempted. While Half-Open,
// only a limited number of trial requests get through; the rest use the
// durable path directly.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.transition(BreakerHalfOpen)
			b.successes = 0
			b.inFlight = 1
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.inFlight < b.cfg.HalfOpenMax {
			b.inFlight++
			return true
		}
		return false
	}
	return false
}

// RecordSuccess notes a successful fast-path execution.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.inFlight > 0 {
			b.inFlight--
		}
		if b.successes >= b.cfg.HalfOpenMax {
			b.transition(BreakerClosed)
			b.failures = 0
		}
	}
}

// RecordFailure notes a failed fast-path execution. Any failure while
// Half-Open reopens the breaker immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	case BreakerHalfOpen:
		b.open()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) open() {
	b.transition(BreakerOpen)
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
	b.inFlight = 0
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
