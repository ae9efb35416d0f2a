package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values, grounded on
// internal/extraction/llm.go's defaultAnthropicModel/defaultOpenAIModel/
// defaultRateLimit/defaultBurst constants.
const (
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 1 * time.Second
	defaultRateLimit   = 50.0 / 60.0
	defaultBurst       = 5
	defaultMaxTokens   = 1024
)

// retryableError marks a provider error as safe to fall back from, per
// spec §4.4's 429/5xx/transport-error policy. It is the same shape as
// internal/extraction/llm.go's retryableError.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	for e := err; e != nil; {
		if _, ok := e.(*retryableError); ok {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// requestShape builds and parses the provider-specific wire format so one
// httpProvider/doRequest pair backs all four provider kinds.
type requestShape struct {
	// buildRequest returns the method, url, and body for a completion call.
	buildRequest func(cfg ProviderConfig, systemPrompt, userPrompt string) (method, url string, body []byte, headers map[string]string, err error)
	// parseResponse extracts the assistant's text from a 2xx body.
	parseResponse func(body []byte) (string, error)
	// parseError extracts a human-readable message from a non-2xx body.
	parseError func(status int, body []byte) string
}

// httpProvider is the shared transport for every provider kind: rate
// limiting, exponential-backoff retry, and 429/5xx-vs-4xx classification,
// grounded directly on anthropicLLMClient/openAILLMClient in
// internal/extraction/llm_client.go.
type httpProvider struct {
	cfg        ProviderConfig
	shape      requestShape
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

func newHTTPProvider(cfg ProviderConfig, shape requestShape) *httpProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &httpProvider{
		cfg:        cfg,
		shape:      shape,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: defaultMaxRetries,
	}
}

func (p *httpProvider) Name() string   { return p.cfg.Name }
func (p *httpProvider) Priority() int  { return p.cfg.Priority }
func (p *httpProvider) Enabled() bool  { return p.cfg.Enabled && p.cfg.APIKey != "" }

// completeJSON sends one request, retrying on transport errors, 429, and
// 5xx with exponential backoff. A non-retryable (4xx-other-than-429)
// failure returns immediately without exhausting the retry budget, since
// retrying a malformed request never succeeds.
func (p *httpProvider) completeJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := p.doRequest(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("provider %s: max retries exceeded: %w", p.cfg.Name, lastErr)
}

func (p *httpProvider) doRequest(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	method, url, body, headers, err := p.shape.buildRequest(p.cfg, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w", errBadRequest{status: resp.StatusCode, message: p.shape.parseError(resp.StatusCode, respBody)})
	}

	return p.shape.parseResponse(respBody)
}

// errBadRequest marks a non-retryable 4xx; the client translates it into
// foldcore.LlmRequest without trying another provider.
type errBadRequest struct {
	status  int
	message string
}

func (e errBadRequest) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.status, e.message)
}

// genericJSONError extracts {"error":{"message": "..."}} shaped bodies,
// which OpenAI-compat, Anthropic, and OpenRouter all use.
func genericJSONError(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return string(body)
}
