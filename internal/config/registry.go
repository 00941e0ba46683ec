package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/scribe/pkg/provider/llm"
	"github.com/MrWong99/scribe/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories is a name-keyed set of constructors for one provider kind.
type factories[T any] map[string]func(ProviderEntry) (T, error)

func (f factories[T]) create(kind string, entry ProviderEntry) (T, error) {
	factory, ok := f[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("config: create %s/%q: %w", kind, entry.Name, err)
	}
	return p, nil
}

func (f factories[T]) names() []string {
	out := make([]string, 0, len(f))
	for name := range f {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt factories[stt.Provider]
	llm factories[llm.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: make(factories[stt.Provider]),
		llm: make(factories[llm.Provider]),
	}
}

// RegisterSTT registers an STT provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// CreateSTT instantiates an STT provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] for unknown names.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create("stt", entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create("llm", entry)
}

// STTNames returns the registered STT provider names in sorted order.
func (r *Registry) STTNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.names()
}

// LLMNames returns the registered LLM provider names in sorted order.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.names()
}
