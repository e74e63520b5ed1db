package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
port: "8080"
databaseURL: "postgres://localhost/chatrelay"
jwtSecret: "file-secret"
defaultModel: "gemini-1.5-flash"
models:
  - id: "gemini-1.5-flash"
    provider: "google"
    endpoint: "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"
    apiKeyEnv: "TEST_GOOGLE_API_KEY"
  - id: "llama3-70b-8192"
    displayName: "Llama 3 70B"
    provider: "openai"
    endpoint: "https://api.groq.com/openai/v1/chat/completions"
    model: "llama3-70b-8192"
    apiKeyEnv: "TEST_GROQ_API_KEY"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndResolvesKeys(t *testing.T) {
	t.Setenv("TEST_GOOGLE_API_KEY", "g-key")
	t.Setenv("TEST_GROQ_API_KEY", "q-key")
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FreeChatLimit != 20 || cfg.FreeMessageLimit != 20 || cfg.HistoryLimit != 20 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.PremiumUnitPrice != 9.99 {
		t.Fatalf("unexpected unit price %v", cfg.PremiumUnitPrice)
	}
	if cfg.Models[0].APIKey != "g-key" || cfg.Models[1].APIKey != "q-key" {
		t.Fatalf("api keys not resolved from env: %+v", cfg.Models)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("DATABASE_URL", "postgres://env/override")
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("JWT_SECRET override not applied: %q", cfg.JWTSecret)
	}
	if cfg.DatabaseURL != "postgres://env/override" {
		t.Fatalf("DATABASE_URL override not applied: %q", cfg.DatabaseURL)
	}
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	cases := []struct {
		name    string
		mangle  func(string) string
		wantErr string
	}{
		{"missing port", func(s string) string { return strings.Replace(s, `port: "8080"`, "", 1) }, "port is required"},
		{"missing jwt secret", func(s string) string { return strings.Replace(s, `jwtSecret: "file-secret"`, "", 1) }, "jwtSecret is required"},
		{"missing default model", func(s string) string { return strings.Replace(s, `defaultModel: "gemini-1.5-flash"`, "", 1) }, "defaultModel is required"},
		{"model without endpoint", func(s string) string {
			return strings.Replace(s, `    endpoint: "https://api.groq.com/openai/v1/chat/completions"`, "", 1)
		}, "endpoint is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.mangle(minimalYAML)))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestParseSessionTTLDefaultsToSevenDays(t *testing.T) {
	dur, err := ParseSessionTTL("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if dur != 168*time.Hour {
		t.Fatalf("expected 168h default, got %v", dur)
	}
	if _, err := ParseSessionTTL("not-a-duration"); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	dur, err = ParseSessionTTL("24h")
	if err != nil || dur != 24*time.Hour {
		t.Fatalf("expected 24h, got %v err %v", dur, err)
	}
}
