package ai

import (
	"errors"
	"testing"
)

func testModels() []ModelConfig {
	return []ModelConfig{
		{
			ID:       "gemini-1.5-flash",
			Kind:     KindGoogle,
			Endpoint: "https://example.test/v1beta/models/gemini-1.5-flash:generateContent",
		},
		{
			ID:            "llama3-70b-8192",
			DisplayName:   "Llama 3 70B",
			Kind:          KindOpenAI,
			Endpoint:      "https://example.test/openai/v1/chat/completions",
			UpstreamModel: "llama3-70b-8192",
		},
	}
}

func TestRegistryResolveDefaultAndUnknown(t *testing.T) {
	r, err := NewRegistry("gemini-1.5-flash", testModels())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	model, err := r.Resolve("")
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if model.ID != "gemini-1.5-flash" {
		t.Fatalf("expected default model, got %q", model.ID)
	}
	if _, err := r.Resolve("gpt-9000"); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestRegistryRejectsBadConfig(t *testing.T) {
	if _, err := NewRegistry("missing", testModels()); err == nil {
		t.Fatalf("expected unknown default model to fail")
	}
	models := testModels()
	models = append(models, models[0])
	if _, err := NewRegistry("gemini-1.5-flash", models); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}
	if _, err := NewRegistry("x", []ModelConfig{{ID: "x", Kind: Kind("soap"), Endpoint: "https://e"}}); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
	if _, err := NewRegistry("x", []ModelConfig{{ID: "x", Kind: KindOpenAI, Endpoint: "https://e"}}); err == nil {
		t.Fatalf("expected missing upstream model to fail")
	}
}

func TestRegistryListDerivesDisplayNames(t *testing.T) {
	r, err := NewRegistry("gemini-1.5-flash", testModels())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 models, got %d", len(infos))
	}
	if infos[0].Name != "Gemini 1.5 Flash" {
		t.Fatalf("unexpected derived display name: %q", infos[0].Name)
	}
	if infos[1].Name != "Llama 3 70B" {
		t.Fatalf("explicit display name not kept: %q", infos[1].Name)
	}
	if infos[0].Provider != "google" || infos[1].Provider != "openai" {
		t.Fatalf("unexpected providers: %+v", infos)
	}
}
