// Package source defines the static registry of text-generation sources that
// chorus fans a user prompt out to. A source pairs a display identity with the
// provider type and model name used to reach it.
package source

import "fmt"

// Source is one configured upstream text-generation endpoint.
// Sources are immutable and defined in a registry at startup.
type Source struct {
	// ID uniquely identifies the source (e.g. "openai/gpt-oss-20b:free").
	ID string `json:"id"`

	// Name is the human-readable display name shown in client panels.
	Name string `json:"name"`

	// Provider is the provider type used to reach this source
	// (e.g. "openrouter", "anthropic", "ollama").
	Provider string `json:"provider"`

	// Model is the provider-native model name sent on generation requests.
	// Defaults to ID when empty.
	Model string `json:"model,omitempty"`
}

// ModelName returns the provider-native model name for this source.
func (s Source) ModelName() string {
	if s.Model != "" {
		return s.Model
	}
	return s.ID
}

// Registry is an ordered, read-only list of sources. Iteration order is
// registry order, which is also the order panels render in.
type Registry struct {
	sources []Source
	byID    map[string]int
}

// NewRegistry creates a registry from the given sources.
// Returns an error on duplicate or empty source IDs.
func NewRegistry(sources []Source) (*Registry, error) {
	r := &Registry{
		sources: make([]Source, len(sources)),
		byID:    make(map[string]int, len(sources)),
	}

	for i, s := range sources {
		if s.ID == "" {
			return nil, fmt.Errorf("source at index %d has empty id", i)
		}
		if _, exists := r.byID[s.ID]; exists {
			return nil, fmt.Errorf("duplicate source id: %q", s.ID)
		}
		r.sources[i] = s
		r.byID[s.ID] = i
	}

	return r, nil
}

// DefaultRegistry returns the built-in source set: the OpenRouter free-tier
// models plus a local Ollama entry.
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]Source{
		{ID: "openai/gpt-oss-20b:free", Name: "GPT OSS 20B", Provider: "openrouter"},
		{ID: "qwen/qwen3-coder:free", Name: "Qwen3 Coder", Provider: "openrouter"},
		{ID: "moonshotai/kimi-k2:free", Name: "Kimi K2", Provider: "openrouter"},
		{ID: "google/gemma-3n-e2b-it:free", Name: "Gemma 3N E2B", Provider: "openrouter"},
		{ID: "ollama/llama3.2", Name: "Llama 3.2 (local)", Provider: "ollama", Model: "llama3.2"},
	})
	if err != nil {
		// The built-in set is static; a failure here is a programming error.
		panic(err)
	}
	return r
}

// All returns the sources in registry order. The returned slice is a copy.
func (r *Registry) All() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (Source, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Source{}, false
	}
	return r.sources[i], true
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.sources)
}

// Subset returns the sources matching the given ids, in registry order.
// Returns an error naming the first unknown id.
func (r *Registry) Subset(ids []string) ([]Source, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("unknown source id: %q", id)
		}
		want[id] = true
	}

	out := make([]Source, 0, len(want))
	for _, s := range r.sources {
		if want[s.ID] {
			out = append(out, s)
		}
	}

	return out, nil
}
