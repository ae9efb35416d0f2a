// Package llm implements the multi-provider LLM client (SPEC_FULL.md §4.4):
// a priority-ordered fallback chain over summarize_code, analyse_content,
// and suggest_evolution, grounded on internal/extraction/llm_client.go's
// anthropicLLMClient/openAILLMClient (rate limiting, retry/backoff,
// retryableError wrapper) generalized to three named operations and four
// provider variants.
package llm

import "time"

// CodeSummary is the result of summarize_code.
type CodeSummary struct {
	Title        string
	Summary      string
	Keywords     []string
	Tags         []string
	Exports      []string
	Dependencies []string
	OriginalDate *time.Time
}

// ContentAnalysis is the result of analyse_content.
type ContentAnalysis struct {
	Keywords []string
	Tags     []string
	Context  string
}

// Neighbor is one nearest-neighbor memory fed to suggest_evolution, per
// spec §4.8 step 2 (id, title, summary, tags).
type Neighbor struct {
	ID      string
	Title   string
	Summary string
	Tags    []string
}

// Evolution is the result of suggest_evolution.
type Evolution struct {
	ShouldEvolve            bool
	SuggestedConnections    []string
	NeighborContextUpdates  map[string]string
}
