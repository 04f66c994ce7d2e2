// Package resilience keeps practice rounds going when a speech or language
// backend misbehaves.
//
// Each configured backend sits behind a [Breaker]. A [Chain] holds the
// backends of one capability in preference order (primary first, then the
// configured fallbacks) and hands a call to the next backend when one fails
// or its breaker is open. [Synthesizers], [Transcribers] and [FeedbackModels]
// expose chains through the provider interfaces the practice session uses.
//
// Cancellation is the caller's decision, not a backend fault: a context
// error never opens a breaker and never moves a call to the next backend.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned for calls rejected by an open [Breaker].
var ErrBreakerOpen = errors.New("resilience: backend disabled after repeated failures")

// State is the condition of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota
	// Open rejects calls until the cooldown has passed.
	Open
	// Trial lets exactly one call through to decide between Closed and Open.
	Trial
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Trial:
		return "trial"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker].
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// breaker. Default: 3.
	Threshold int

	// Cooldown is how long an open breaker rejects calls before it admits a
	// single trial call. Default: 20s.
	Cooldown time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 20 * time.Second
	}
	return c
}

// Breaker is a circuit breaker for one backend. It is safe for concurrent
// use.
type Breaker struct {
	cfg      BreakerConfig
	now      func() time.Time
	onChange func(State)

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// NewBreaker returns a closed breaker. onChange, if non-nil, is called with
// every state the breaker enters; it runs under the breaker lock and must not
// call back into the breaker.
func NewBreaker(cfg BreakerConfig, onChange func(State)) *Breaker {
	return &Breaker{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		onChange: onChange,
	}
}

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker rejects the call with [ErrBreakerOpen].
// fn's error is returned unchanged.
func (b *Breaker) Do(fn func() error) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.settle(trial, err)
	return err
}

// admit decides whether a call may run. After the cooldown the first caller
// becomes the trial; everyone else keeps being rejected until it settles.
func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return false, ErrBreakerOpen
		}
		b.enter(Trial)
		return true, nil
	case Trial:
		return false, ErrBreakerOpen
	}
	return false, nil
}

func (b *Breaker) settle(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case isContextErr(err):
		// Outcome unknown. A cancelled trial hands the slot back.
		if trial {
			b.enter(Open)
		}
	case err == nil:
		b.failures = 0
		if trial {
			b.enter(Closed)
		}
	default:
		b.failures++
		if trial || b.failures >= b.cfg.Threshold {
			b.openedAt = b.now()
			if b.state != Open {
				b.enter(Open)
			}
		}
	}
}

// enter switches state. Must hold b.mu.
func (b *Breaker) enter(s State) {
	b.state = s
	if b.onChange != nil {
		b.onChange(s)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
