package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const summarizeCodeSystemPrompt = `You are an expert software engineer summarizing source code for a semantic memory index.

Given a file's content, path, and language, respond ONLY with a JSON object:
{
  "title": "short descriptive title",
  "summary": "3-5 sentence semantic summary of what this file does",
  "keywords": ["..."],
  "tags": ["..."],
  "exports": ["exported symbol names"],
  "dependencies": ["imported package/module names"]
}`

const analyseContentSystemPrompt = `You are an expert at extracting searchable metadata from arbitrary text content.

Respond ONLY with a JSON object:
{
  "keywords": ["..."],
  "tags": ["..."],
  "context": "3-5 sentence semantic summary of the content"
}`

const suggestEvolutionSystemPrompt = `You are an agentic memory linker. Given a new memory and its nearest-neighbor
memories, decide whether the new memory should be linked to any of them and
whether any neighbor's context should be updated to reflect the new memory.

Respond ONLY with a JSON object:
{
  "should_evolve": true/false,
  "suggested_connections": ["neighbor id", ...],
  "neighbor_context_updates": {"neighbor id": "updated context text", ...}
}`

func summarizeCodeUserPrompt(content, path, language string) string {
	return fmt.Sprintf("Path: %s\nLanguage: %s\n\nContent:\n%s", path, language, truncate(content))
}

func analyseContentUserPrompt(content string) string {
	return fmt.Sprintf("Content:\n%s", truncate(content))
}

func suggestEvolutionUserPrompt(newExcerpt string, neighbors []Neighbor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New memory excerpt:\n%s\n\nNeighbors:\n", truncate(newExcerpt))
	for _, n := range neighbors {
		fmt.Fprintf(&b, "- id=%s title=%q tags=%v summary=%s\n", n.ID, n.Title, n.Tags, n.Summary)
	}
	return b.String()
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseCodeSummary(raw string) (CodeSummary, error) {
	var resp struct {
		Title        string   `json:"title"`
		Summary      string   `json:"summary"`
		Keywords     []string `json:"keywords"`
		Tags         []string `json:"tags"`
		Exports      []string `json:"exports"`
		Dependencies []string `json:"dependencies"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		return CodeSummary{}, fmt.Errorf("parse summarize_code response: %w", err)
	}
	return CodeSummary{
		Title:        resp.Title,
		Summary:      resp.Summary,
		Keywords:     resp.Keywords,
		Tags:         resp.Tags,
		Exports:      resp.Exports,
		Dependencies: resp.Dependencies,
	}, nil
}

func parseContentAnalysis(raw string) (ContentAnalysis, error) {
	var resp struct {
		Keywords []string `json:"keywords"`
		Tags     []string `json:"tags"`
		Context  string   `json:"context"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		return ContentAnalysis{}, fmt.Errorf("parse analyse_content response: %w", err)
	}
	return ContentAnalysis{Keywords: resp.Keywords, Tags: resp.Tags, Context: resp.Context}, nil
}

func parseEvolution(raw string) (Evolution, error) {
	var resp struct {
		ShouldEvolve           bool              `json:"should_evolve"`
		SuggestedConnections   []string          `json:"suggested_connections"`
		NeighborContextUpdates map[string]string `json:"neighbor_context_updates"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		return Evolution{}, fmt.Errorf("parse suggest_evolution response: %w", err)
	}
	return Evolution{
		ShouldEvolve:           resp.ShouldEvolve,
		SuggestedConnections:   resp.SuggestedConnections,
		NeighborContextUpdates: resp.NeighborContextUpdates,
	}, nil
}
