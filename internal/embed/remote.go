package embed

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

const (
	remoteDefaultTimeout     = 30 * time.Second
	remoteDefaultMaxRetries  = 3
	remoteDefaultBaseBackoff = 500 * time.Millisecond
	remoteDefaultRateLimit   = 100.0 / 60.0
	remoteDefaultBurst       = 10
)

// RemoteConfig configures an OpenAI-compatible /embeddings endpoint, used
// for query-time embedding (search_priority) so index-time and search-time
// providers can run different models without coupling.
type RemoteConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// RemoteProvider embeds text over HTTP against an OpenAI-compatible
// /embeddings endpoint, sharing the rate-limit/retry transport shape of
// internal/llm's httpProvider.
type RemoteProvider struct {
	cfg        RemoteConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewRemoteProvider validates cfg and returns a ready RemoteProvider.
func NewRemoteProvider(cfg RemoteConfig) (*RemoteProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint required", ErrInvalidConfig)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = remoteDefaultTimeout
	}
	return &RemoteProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(remoteDefaultRateLimit), remoteDefaultBurst),
		maxRetries: remoteDefaultMaxRetries,
	}, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedDocuments embeds multiple texts in one request.
func (p *RemoteProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	resp, err := p.request(ctx, texts)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text.
func (p *RemoteProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	resp, err := p.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return resp.Data[0].Embedding, nil
}

// Dimension returns the configured embedding dimension.
func (p *RemoteProvider) Dimension() int {
	return p.cfg.Dimension
}

// Close is a no-op; the remote provider holds no resources beyond the
// shared http.Client.
func (p *RemoteProvider) Close() error {
	return nil
}

func (p *RemoteProvider) request(ctx context.Context, texts []string) (embeddingsResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return embeddingsResponse{}, fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := remoteDefaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return embeddingsResponse{}, ctx.Err()
			}
		}

		resp, retryable, err := p.doRequest(ctx, texts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			return embeddingsResponse{}, err
		}
	}
	return embeddingsResponse{}, fmt.Errorf("%w: max retries exceeded: %v", ErrEmbeddingFailed, lastErr)
}

func (p *RemoteProvider) doRequest(ctx context.Context, texts []string) (embeddingsResponse, bool, error) {
	reqBody, err := json.Marshal(embeddingsRequest{Model: p.cfg.Model, Input: texts})
	if err != nil {
		return embeddingsResponse{}, false, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return embeddingsResponse{}, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return embeddingsResponse{}, true, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return embeddingsResponse{}, false, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return embeddingsResponse{}, true, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return embeddingsResponse{}, false, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var decoded embeddingsResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return embeddingsResponse{}, false, fmt.Errorf("decode response: %w", err)
	}
	return decoded, false, nil
}
