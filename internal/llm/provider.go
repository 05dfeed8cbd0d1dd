package llm

import (
	"context"
	"sync"

	"interview-insights-go/internal/config"
	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/logger"
)

// Request is one chat-completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64

	// ForceJSON asks the provider for a JSON-object response where the
	// API supports it; the parser still runs the fence-stripping
	// extraction either way.
	ForceJSON bool
}

// Usage is provider-reported token consumption for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response carries the model output and its usage accounting.
type Response struct {
	Content string
	Usage   Usage
	Model   string
}

// Provider is an opaque chat-completion service.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Registry holds the configured providers and the default selection.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string
	log       *logger.Logger
}

func NewRegistry(log *logger.Logger, fallback string) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		fallback:  fallback,
		log:       log,
	}
}

// Register adds a provider under its name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.Name()]; exists {
		r.log.WithField("provider", p.Name()).Warn("Provider registered twice, keeping the first")
		return
	}
	r.providers[p.Name()] = p
	r.log.WithField("provider", p.Name()).Debug("Provider registered")
}

// Get returns the named provider, falling back to the default when the
// name is unknown.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	if p, ok := r.providers[r.fallback]; ok {
		if name != "" {
			r.log.WithField("provider", name).Warn("Unknown provider, using default")
		}
		return p, nil
	}
	return nil, apperrors.NewNotFound("no such provider",
		map[string]interface{}{"provider": name, "default": r.fallback})
}

// Default returns the configured default provider.
func (r *Registry) Default() (Provider, error) {
	return r.Get(r.fallback)
}

// FromConfig builds a registry with every supported provider registered
// and the configured one as default.
func FromConfig(cfg config.LLMConfig, log *logger.Logger) *Registry {
	registry := NewRegistry(log, cfg.Provider)
	if cfg.APIKey != "" || cfg.BaseURL != "" {
		registry.Register(NewOpenAIProvider(cfg, log))
	}
	registry.Register(NewMockProvider(cfg.Model))
	return registry
}
