// Package llm provides a provider-agnostic language model client used by
// the budget pipeline. Providers are interchangeable behind the Client
// interface; the pipeline never depends on a concrete backend.
package llm

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/obradoria/budget-agent/internal/config"
)

// Request is a single completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Usage tracks token consumption for one completion.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the provider-normalized completion result.
type Response struct {
	Content  string
	Model    string
	Provider string
	Usage    Usage
}

// Client defines the language model operations used by the pipeline.
type Client interface {
	// Name returns the provider identifier ("ollama", "openai", "anthropic").
	Name() string
	// Complete runs a single completion and returns the normalized response.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Ping reports whether the provider is reachable/configured.
	Ping(ctx context.Context) error
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[string]Client
	def       string
}

// NewRegistry builds a registry from configuration. Ollama is always
// registered; OpenAI and Anthropic only when an API key is configured.
func NewRegistry(cfg config.LLMConfig) *Registry {
	r := &Registry{
		providers: make(map[string]Client),
		def:       cfg.Provider,
	}

	r.providers["ollama"] = NewOllama(cfg.Ollama)
	if cfg.OpenAI.Key != "" {
		r.providers["openai"] = NewOpenAI(cfg.OpenAI)
	}
	if cfg.Anthropic.Key != "" {
		r.providers["anthropic"] = NewAnthropic(cfg.Anthropic)
	}

	return r
}

// Get returns the provider by name, or the configured default when name is
// empty.
func (r *Registry) Get(name string) (Client, error) {
	if name == "" {
		name = r.def
	}
	c, ok := r.providers[name]
	if !ok {
		return nil, eris.Errorf("llm: unknown or unconfigured provider %q", name)
	}
	return c, nil
}

// Default returns the configured default provider name.
func (r *Registry) Default() string {
	return r.def
}

// Available lists the registered provider names, sorted.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
