package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/elocute/pkg/audio/capture"
	"github.com/MrWong99/elocute/pkg/provider/llm"
	"github.com/MrWong99/elocute/pkg/provider/stt"
	"github.com/MrWong99/elocute/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	llm     map[string]func(ProviderEntry) (llm.Provider, error)
	stt     map[string]func(ProviderEntry) (stt.Transcriber, error)
	tts     map[string]func(ProviderEntry) (tts.Synthesizer, error)
	capture map[string]func(ProviderEntry) (capture.Device, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:     make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:     make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
		tts:     make(map[string]func(ProviderEntry) (tts.Synthesizer, error)),
		capture: make(map[string]func(ProviderEntry) (capture.Device, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a synthesizer factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterCapture registers a capture device factory under name.
func (r *Registry) RegisterCapture(name string, factory func(ProviderEntry) (capture.Device, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateSTT instantiates a transcriber using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateTTS instantiates a synthesizer using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Synthesizer, error) {
	return create(r, r.tts, "tts", entry)
}

// CreateCapture instantiates a capture device using the factory registered under entry.Name.
func (r *Registry) CreateCapture(entry ProviderEntry) (capture.Device, error) {
	return create(r, r.capture, "capture", entry)
}

// Names returns the sorted provider names registered for kind ("llm", "stt",
// "tts" or "capture").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "llm":
		names = keys(r.llm)
	case "stt":
		names = keys(r.stt)
	case "tts":
		names = keys(r.tts)
	case "capture":
		names = keys(r.capture)
	}
	slices.Sort(names)
	return names
}

func create[T any](r *Registry, m map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := m[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
