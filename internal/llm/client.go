package llm

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Generation-One/fold/internal/foldcore"
	"go.uber.org/zap"
)

// Client holds a priority-ordered list of providers and exposes the three
// operations the rest of Fold calls, per spec §4.4/§6.1.
type Client struct {
	log       *zap.Logger
	providers []provider

	mu         sync.Mutex
	lastErrors map[string]error
}

// New builds a Client from provider configs, sorted by descending
// priority. log may be nil.
func New(configs []ProviderConfig, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}

	sorted := append([]ProviderConfig(nil), configs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	var providers []provider
	for _, cfg := range sorted {
		if !cfg.Enabled {
			continue
		}
		p, err := newProvider(cfg)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	return &Client{log: log, providers: providers, lastErrors: map[string]error{}}, nil
}

// SummarizeCode implements the summarize_code operation.
func (c *Client) SummarizeCode(ctx context.Context, content, filePath, language string) (CodeSummary, error) {
	raw, err := c.complete(ctx, summarizeCodeSystemPrompt, summarizeCodeUserPrompt(content, filePath, language))
	if err != nil {
		return CodeSummary{}, err
	}
	summary, perr := parseCodeSummary(raw)
	if perr != nil {
		return CodeSummary{}, foldcore.Wrap(foldcore.LlmRequest, perr)
	}
	return summary, nil
}

// AnalyseContent implements the analyse_content operation.
func (c *Client) AnalyseContent(ctx context.Context, content string) (ContentAnalysis, error) {
	raw, err := c.complete(ctx, analyseContentSystemPrompt, analyseContentUserPrompt(content))
	if err != nil {
		return ContentAnalysis{}, err
	}
	analysis, perr := parseContentAnalysis(raw)
	if perr != nil {
		return ContentAnalysis{}, foldcore.Wrap(foldcore.LlmRequest, perr)
	}
	return analysis, nil
}

// SuggestEvolution implements the suggest_evolution operation.
func (c *Client) SuggestEvolution(ctx context.Context, newExcerpt string, neighbors []Neighbor) (Evolution, error) {
	raw, err := c.complete(ctx, suggestEvolutionSystemPrompt, suggestEvolutionUserPrompt(newExcerpt, neighbors))
	if err != nil {
		return Evolution{}, err
	}
	evolution, perr := parseEvolution(raw)
	if perr != nil {
		return Evolution{}, foldcore.Wrap(foldcore.LlmRequest, perr)
	}
	return evolution, nil
}

// complete iterates providers in priority order. A retryable failure
// (429/5xx/transport) records last_error and tries the next provider; a
// bad-request (4xx other than 429) returns immediately as LlmRequest
// without trying further providers, since the request itself is malformed
// and retrying elsewhere would not help. Exhausting every provider with
// only retryable failures returns LlmExhausted.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if len(c.providers) == 0 {
		return "", foldcore.New(foldcore.LlmExhausted, "no llm providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		if !p.Enabled() {
			continue
		}
		text, err := p.completeJSON(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}

		c.recordError(p.Name(), err)

		var badReq errBadRequest
		if errors.As(err, &badReq) {
			return "", foldcore.Wrap(foldcore.LlmRequest, err)
		}
		lastErr = err
	}

	if lastErr == nil {
		return "", foldcore.New(foldcore.LlmExhausted, "no llm providers enabled")
	}
	return "", foldcore.Wrap(foldcore.LlmExhausted, lastErr)
}

func (c *Client) recordError(providerName string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErrors[providerName] = err
	c.log.Warn("llm provider failed, trying next", zap.String("provider", providerName), zap.Error(err))
}

// LastError returns the most recent error recorded for a provider, or nil.
func (c *Client) LastError(providerName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErrors[providerName]
}
