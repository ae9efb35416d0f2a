package llm

import (
	"context"
	"time"
)

// provider is one configured LLM backend. Every variant (openai-compat,
// anthropic, gemini, openrouter) implements this with the same
// httpProvider/doRequest transport, differing only in endpoint shape and auth
// header, per SPEC_FULL.md §4.4.
type provider interface {
	Name() string
	Priority() int
	Enabled() bool
	completeJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ProviderConfig is the operator-facing configuration for one LLM backend,
// loaded by internal/config.
type ProviderConfig struct {
	Name     string
	Kind     string // "openai-compat" | "anthropic" | "gemini" | "openrouter"
	Priority int
	Enabled  bool
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}
