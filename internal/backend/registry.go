package backend

import (
	"context"
	"fmt"
	"sort"
)

// Factory builds a client from a backend settings block. Registered once
// per supported backend kind; resolved at run start, never re-resolved
// mid-run.
type Factory func(ctx context.Context, settings Settings) (Client, error)

// Settings is the resolved per-backend configuration handed to a factory.
type Settings struct {
	Name       string
	Kind       string // "gemini" or "openai"
	Model      string
	BaseURL    string
	APIKeys    []string
	SchemaJSON string
	MaxTokens  int
}

// Registry maps backend kind identifiers to factories. It is an explicit
// injected collection, constructed per caller rather than a package-level
// singleton, so tests can register scripted backends in isolation.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in backend kinds.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("gemini", func(ctx context.Context, s Settings) (Client, error) {
		return NewGeminiClient(ctx, GeminiConfig{
			Name:       s.Name,
			Model:      s.Model,
			APIKeys:    s.APIKeys,
			SchemaJSON: s.SchemaJSON,
		})
	})
	r.Register("openai", func(ctx context.Context, s Settings) (Client, error) {
		return NewOpenAICompatClient(OpenAICompatConfig{
			Name:       s.Name,
			Model:      s.Model,
			BaseURL:    s.BaseURL,
			APIKeys:    s.APIKeys,
			SchemaJSON: s.SchemaJSON,
			MaxTokens:  s.MaxTokens,
		})
	})
	return r
}

// Register adds or replaces a factory for a backend kind.
func (r *Registry) Register(kind string, factory Factory) {
	r.factories[kind] = factory
}

// Kinds returns the registered backend kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Resolve builds a client for the given settings.
func (r *Registry) Resolve(ctx context.Context, settings Settings) (Client, error) {
	factory, ok := r.factories[settings.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown backend kind %q (registered: %v)", settings.Kind, r.Kinds())
	}
	client, err := factory(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend %s: %w", settings.Name, err)
	}
	return client, nil
}

// ResolveAll builds clients for every settings block, failing fast on the
// first unresolvable backend.
func (r *Registry) ResolveAll(ctx context.Context, blocks []Settings) ([]Client, error) {
	clients := make([]Client, 0, len(blocks))
	for _, s := range blocks {
		client, err := r.Resolve(ctx, s)
		if err != nil {
			for _, c := range clients {
				_ = c.Close()
			}
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, nil
}
