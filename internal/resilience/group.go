package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/scribe/internal/observe"
)

// ErrExhausted is returned when no provider in a [Group] succeeded.
var ErrExhausted = errors.New("resilience: all providers failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group holds a primary provider and its fallbacks, each behind its own
// [Breaker].
type Group[T any] struct {
	kind    string
	cfg     BreakerConfig
	metrics *observe.Metrics
	members []member[T]
}

// GroupOption configures a [Group].
type GroupOption func(*groupOptions)

type groupOptions struct {
	cfg     BreakerConfig
	metrics *observe.Metrics
}

// WithBreaker sets the breaker configuration used for every member.
func WithBreaker(cfg BreakerConfig) GroupOption {
	return func(o *groupOptions) { o.cfg = cfg }
}

// WithMetrics records every failed member call as a provider error of kind
// "failover". Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) GroupOption {
	return func(o *groupOptions) { o.metrics = m }
}

// NewGroup returns a group of the given provider kind ("stt", "llm") whose
// first member is primary.
func NewGroup[T any](kind, primaryName string, primary T, opts ...GroupOption) *Group[T] {
	var o groupOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	g := &Group[T]{kind: kind, cfg: o.cfg, metrics: o.metrics}
	g.Add(primaryName, primary)
	return g
}

// Add appends a fallback. Members are tried in the order they were added.
// Add must not be called concurrently with [Call].
func (g *Group[T]) Add(name string, p T) {
	g.members = append(g.members, member[T]{
		name:    name,
		value:   p,
		breaker: NewBreaker(g.kind+"/"+name, g.cfg),
	})
}

// Names returns the member names in order.
func (g *Group[T]) Names() []string {
	out := make([]string, len(g.members))
	for i, m := range g.members {
		out[i] = m.name
	}
	return out
}

// Primary returns the first member.
func (g *Group[T]) Primary() T { return g.members[0].value }

// Call runs fn against each member in order and returns the first success.
// Members with an open breaker are skipped. Call stops early when ctx is
// done.
func Call[T, R any](ctx context.Context, g *Group[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for _, m := range g.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := m.breaker.Do(func() error {
			var err error
			out, err = fn(m.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping provider with open circuit", "kind", g.kind, "provider", m.name)
			continue
		}
		if ctx.Err() != nil {
			return zero, err
		}
		g.metrics.RecordProviderError(ctx, m.name, "failover")
		observe.Logger(ctx).Warn("provider failed, trying next", "kind", g.kind, "provider", m.name, "err", err)
	}
	return zero, fmt.Errorf("%w: %s: %w", ErrExhausted, g.kind, lastErr)
}
