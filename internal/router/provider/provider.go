// Package provider is the endpoint-kind registry backing the model
// router's per-endpoint dispatch (spec §4.7), adapted from the teacher's
// internal/models/provider Register/Info/ValidateConfig/DetectProvider
// pattern, narrowed to three endpoint kinds: OpenAI's own API, a generic
// OpenAI-compatible HTTP endpoint and a local Ollama endpoint
// (vendor-specific providers dropped, see DESIGN.md).
package provider

import (
	"fmt"
	"strings"
	"sync"
)

// Name identifies one endpoint kind.
type Name string

const (
	OpenAI  Name = "openai"
	Ollama  Name = "ollama"
	Generic Name = "generic"
)

// Config is the per-endpoint configuration a Provider validates.
type Config struct {
	BaseURL   string
	APIKey    string
	ModelName string
}

// Info is a provider's static metadata.
type Info struct {
	Name         Name
	DisplayName  string
	RequiresAuth bool
}

// Provider is one endpoint kind known to the router.
type Provider interface {
	Info() Info
	ValidateConfig(config *Config) error
}

var (
	mu        sync.RWMutex
	providers = make(map[Name]Provider)
)

// Register adds p to the registry. Called from each provider's init().
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[p.Info().Name] = p
}

// Get looks up a provider by name.
func Get(name Name) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := providers[name]
	return p, ok
}

// List returns every registered provider.
func List() []Provider {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		out = append(out, p)
	}
	return out
}

// GetOrDefault returns the named provider, falling back to Generic when
// unregistered.
func GetOrDefault(name Name) Provider {
	if p, ok := Get(name); ok {
		return p
	}
	p, _ := Get(Generic)
	return p
}

// DetectProvider infers a provider kind from an endpoint base URL.
func DetectProvider(baseURL string) Name {
	lower := strings.ToLower(baseURL)
	switch {
	case strings.Contains(lower, "api.openai.com"):
		return OpenAI
	case strings.Contains(lower, "localhost"), strings.Contains(lower, "127.0.0.1"), strings.Contains(lower, ":11434"):
		return Ollama
	default:
		return Generic
	}
}

type openAIProvider struct{}

func init() { Register(&openAIProvider{}) }

func (openAIProvider) Info() Info {
	return Info{Name: OpenAI, DisplayName: "OpenAI", RequiresAuth: true}
}

func (openAIProvider) ValidateConfig(config *Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required for the openai provider")
	}
	if config.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}

type ollamaProvider struct{}

func init() { Register(&ollamaProvider{}) }

func (ollamaProvider) Info() Info {
	return Info{Name: Ollama, DisplayName: "Ollama (local)", RequiresAuth: false}
}

func (ollamaProvider) ValidateConfig(config *Config) error {
	if config.BaseURL == "" {
		return fmt.Errorf("base URL is required for the ollama provider")
	}
	if config.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}

type genericProvider struct{}

func init() { Register(&genericProvider{}) }

func (genericProvider) Info() Info {
	return Info{Name: Generic, DisplayName: "Generic (OpenAI-compatible)", RequiresAuth: false}
}

func (genericProvider) ValidateConfig(config *Config) error {
	if config.BaseURL == "" {
		return fmt.Errorf("base URL is required for the generic provider")
	}
	if config.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}
