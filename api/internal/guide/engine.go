package guide

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"snap-to-spec/api/internal/ingest"
)

// Engine sends one image with the fixed instruction and schema to a model and returns its raw text.
type Engine interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, img ingest.Payload) (string, error)
}

// ModelSwitcher is implemented by engines that can run another model of the same provider.
// WithModel returns a new engine and never mutates the receiver, so the result can be
// handed to one session while others keep using the original.
type ModelSwitcher interface {
	WithModel(model string) Engine
}

// EngineFunc adapts a function to Engine. Handy as a test double.
type EngineFunc func(ctx context.Context, img ingest.Payload) (string, error)

// Name reports "func"; GetModel reports no model.
func (f EngineFunc) Name() string     { return "func" }
func (f EngineFunc) GetModel() string { return "" }

// Generate calls f.
func (f EngineFunc) Generate(ctx context.Context, img ingest.Payload) (string, error) {
	return f(ctx, img)
}

// Engines is the set of configured providers.
type Engines struct {
	Gemini Engine
	Vertex Engine
	OpenAI Engine
	Claude Engine

	// Default names the provider used when a caller does not pick one.
	Default string
}

// GetEngine resolves a provider name or alias. An empty name means the default.
func (e *Engines) GetEngine(llmName string) (Engine, error) {
	name := strings.ToLower(strings.TrimSpace(llmName))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(e.Default))
	}
	var eng Engine
	switch name {
	case "", "gemini", "google":
		eng = e.Gemini
	case "vertex":
		eng = e.Vertex
	case "gpt", "openai":
		eng = e.OpenAI
	case "claude", "anthropic":
		eng = e.Claude
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use gemini | vertex | gpt | claude", llmName)
	}
	if eng == nil {
		return nil, fmt.Errorf("%w: engine %q", ErrNotConfigured, name)
	}
	return eng, nil
}

// Names lists the providers that are wired.
func (e *Engines) Names() []string {
	var out []string
	for _, p := range []struct {
		name string
		eng  Engine
	}{{"gemini", e.Gemini}, {"vertex", e.Vertex}, {"gpt", e.OpenAI}, {"claude", e.Claude}} {
		if p.eng != nil {
			out = append(out, p.name)
		}
	}
	return out
}

// EngineSource picks the engine for a session key.
type EngineSource interface {
	EngineFor(key string) (Engine, error)
}

// Manager keeps per-session engine overrides on top of a default.
type Manager struct {
	def Engine
	m   sync.Map // session key -> Engine
}

// NewManager returns a Manager that falls back to defaultEngine, which may be nil.
func NewManager(defaultEngine Engine) *Manager {
	return &Manager{def: defaultEngine}
}

// Get returns the override for key, or the default.
func (m *Manager) Get(key string) Engine {
	if v, ok := m.m.Load(key); ok {
		return v.(Engine)
	}
	return m.def
}

// Set overrides the engine for key only.
func (m *Manager) Set(key string, e Engine) {
	m.m.Store(key, e)
}

// Clear drops the override for key.
func (m *Manager) Clear(key string) {
	m.m.Delete(key)
}

// EngineFor is Get with ErrNotConfigured when neither an override nor a default exists.
func (m *Manager) EngineFor(key string) (Engine, error) {
	if e := m.Get(key); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: no engine for %q", ErrNotConfigured, key)
}
