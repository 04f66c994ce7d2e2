package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/elocute/internal/observe"
)

// ErrExhausted is returned when no backend of a [Chain] produced a result.
var ErrExhausted = errors.New("resilience: every backend failed")

// Backend is one named implementation of a capability.
type Backend[T any] struct {
	Name string
	Impl T
}

// ChainOption configures a [Chain].
type ChainOption func(*chainConfig)

type chainConfig struct {
	breaker BreakerConfig
	metrics *observe.Metrics
}

// WithBreaker tunes the breaker placed in front of every backend.
func WithBreaker(cfg BreakerConfig) ChainOption {
	return func(c *chainConfig) { c.breaker = cfg }
}

// WithChainMetrics records failovers and breaker transitions into m.
// Defaults to [observe.DefaultMetrics].
func WithChainMetrics(m *observe.Metrics) ChainOption {
	return func(c *chainConfig) { c.metrics = m }
}

type link[T any] struct {
	name    string
	impl    T
	breaker *Breaker
}

// Chain is an ordered list of backends for one capability ("tts", "stt" or
// "llm"), each guarded by its own [Breaker].
type Chain[T any] struct {
	kind    string
	links   []link[T]
	metrics *observe.Metrics
}

// NewChain builds a chain trying backends in the given order.
func NewChain[T any](kind string, backends []Backend[T], opts ...ChainOption) *Chain[T] {
	var cfg chainConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}

	c := &Chain[T]{kind: kind, metrics: cfg.metrics}
	for _, b := range backends {
		name := b.Name
		c.links = append(c.links, link[T]{
			name: name,
			impl: b.Impl,
			breaker: NewBreaker(cfg.breaker, func(s State) {
				slog.Info("backend breaker changed state", "kind", kind, "provider", name, "state", s)
				cfg.metrics.RecordBreakerTransition(context.Background(), kind, name, s.String())
			}),
		})
	}
	return c
}

// Names lists the backends in preference order.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.links))
	for i, l := range c.links {
		names[i] = l.name
	}
	return names
}

// Call runs fn against the first backend that accepts and succeeds. Backends
// whose breaker is open are skipped. A context error ends the walk at once
// and is returned unwrapped. When every backend fails, the result wraps
// [ErrExhausted] and each backend's error.
func Call[T, R any](ctx context.Context, c *Chain[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for i := range c.links {
		l := &c.links[i]
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		var out R
		err := l.breaker.Do(func() error {
			var err error
			out, err = fn(ctx, l.impl)
			return err
		})
		if err == nil {
			if i > 0 {
				observe.Logger(ctx).Debug("served by fallback backend", "kind", c.kind, "provider", l.name)
			}
			return out, nil
		}
		if isContextErr(err) {
			return zero, err
		}

		errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
		if !errors.Is(err, ErrBreakerOpen) {
			observe.Logger(ctx).Warn("backend failed", "kind", c.kind, "provider", l.name, "err", err)
		}
		if i < len(c.links)-1 {
			c.metrics.RecordFailover(ctx, c.kind, l.name)
		}
	}
	return zero, fmt.Errorf("%s: %w: %w", c.kind, ErrExhausted, errors.Join(errs...))
}
