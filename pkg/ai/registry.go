package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies how an upstream endpoint is spoken to.
type Kind string

const (
	// KindGoogle is the Google AI Studio generateContent API. It takes a
	// single prompt per call; conversation history is not sent.
	KindGoogle Kind = "google"
	// KindOpenAI is any OpenAI-compatible /chat/completions API
	// (Groq, OpenRouter, vLLM, self-hosted models, ...).
	KindOpenAI Kind = "openai"
)

// ErrUnknownModel is returned when a logical model id is not registered.
// Unknown models are rejected rather than silently mapped to the default
// so callers never get a different cost/quality profile than requested.
var ErrUnknownModel = errors.New("unknown model")

// ModelConfig binds a logical model id to one upstream endpoint.
type ModelConfig struct {
	ID            string
	DisplayName   string
	Kind          Kind
	Endpoint      string
	UpstreamModel string // chat-completion kind only
	APIKey        string
}

// ModelInfo is the public projection of a registry entry.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Registry maps logical model ids to upstream endpoints. It is built from
// configuration at startup and passed into the application explicitly so it
// can differ per environment and be swapped in tests.
type Registry struct {
	models    map[string]ModelConfig
	order     []string
	defaultID string
}

// NewRegistry validates the model table and the default model id.
func NewRegistry(defaultID string, models []ModelConfig) (*Registry, error) {
	if len(models) == 0 {
		return nil, errors.New("at least one model required")
	}
	table := make(map[string]ModelConfig, len(models))
	order := make([]string, 0, len(models))
	for _, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, errors.New("model id required")
		}
		if _, exists := table[m.ID]; exists {
			return nil, fmt.Errorf("duplicate model id %q", m.ID)
		}
		switch m.Kind {
		case KindGoogle, KindOpenAI:
		default:
			return nil, fmt.Errorf("model %q: unknown provider kind %q", m.ID, m.Kind)
		}
		if strings.TrimSpace(m.Endpoint) == "" {
			return nil, fmt.Errorf("model %q: endpoint required", m.ID)
		}
		if m.Kind == KindOpenAI && strings.TrimSpace(m.UpstreamModel) == "" {
			return nil, fmt.Errorf("model %q: upstream model name required", m.ID)
		}
		if strings.TrimSpace(m.DisplayName) == "" {
			m.DisplayName = displayName(m.ID)
		}
		table[m.ID] = m
		order = append(order, m.ID)
	}
	defaultID = strings.TrimSpace(defaultID)
	if _, ok := table[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q not registered", defaultID)
	}
	return &Registry{models: table, order: order, defaultID: defaultID}, nil
}

// Resolve maps a logical model id to its configuration. An empty id picks
// the configured default; an unrecognized id is an error.
func (r *Registry) Resolve(id string) (ModelConfig, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = r.defaultID
	}
	model, ok := r.models[id]
	if !ok {
		return ModelConfig{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
	}
	return model, nil
}

// DefaultID returns the configured default model id.
func (r *Registry) DefaultID() string {
	return r.defaultID
}

// List returns model projections in registration order.
func (r *Registry) List() []ModelInfo {
	res := make([]ModelInfo, 0, len(r.order))
	for _, id := range r.order {
		m := r.models[id]
		res = append(res, ModelInfo{
			ID:       m.ID,
			Name:     m.DisplayName,
			Provider: string(m.Kind),
		})
	}
	return res
}

// displayName derives a human label from a logical id,
// e.g. "gemini-1.5-flash" -> "Gemini 1.5 Flash".
func displayName(id string) string {
	words := strings.Split(strings.ReplaceAll(id, "-", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
