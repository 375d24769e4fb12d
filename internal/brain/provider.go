// Package brain abstracts the generative text providers used for headline
// synthesis.
package brain

import (
	"context"
)

// Provider is the interface for AI providers
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama")
	Name() string

	// Available returns true if the provider is configured and ready
	Available() bool

	// Generate sends a prompt and returns the response
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request is a prompt request to an AI provider
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Response is the AI provider's response
type Response struct {
	Content     string
	Model       string
	RawResponse string // The raw API response body for logging/debugging
}

// Manager selects among configured providers with fallback
type Manager struct {
	providers []Provider
	preferred string // Preferred provider name
}

// NewManager creates a provider manager
func NewManager() *Manager {
	return &Manager{
		providers: make([]Provider, 0),
	}
}

// Add registers a provider
func (m *Manager) Add(p Provider) {
	m.providers = append(m.providers, p)
}

// SetPreferred sets the preferred provider by name
func (m *Manager) SetPreferred(name string) {
	m.preferred = name
}

// Pick returns the first available provider, preferring the preferred one
func (m *Manager) Pick() Provider {
	if m.preferred != "" {
		for _, p := range m.providers {
			if p.Name() == m.preferred && p.Available() {
				return p
			}
		}
	}

	for _, p := range m.providers {
		if p.Available() {
			return p
		}
	}

	return nil
}

// ListAvailable returns names of all available providers
func (m *Manager) ListAvailable() []string {
	var names []string
	for _, p := range m.providers {
		if p.Available() {
			names = append(names, p.Name())
		}
	}
	return names
}
