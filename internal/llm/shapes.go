package llm

import (
	"encoding/json"
	"fmt"
)

// newProvider constructs the provider variant for cfg.Kind, per spec §9's
// minimum variant set (openai-compat, anthropic, gemini, openrouter), all
// sharing httpProvider/requestShape.
func newProvider(cfg ProviderConfig) (provider, error) {
	switch cfg.Kind {
	case "openai-compat":
		return newHTTPProvider(cfg, openAICompatShape(cfg)), nil
	case "anthropic":
		return newHTTPProvider(cfg, anthropicShape(cfg)), nil
	case "gemini":
		return newHTTPProvider(cfg, geminiShape(cfg)), nil
	case "openrouter":
		return newHTTPProvider(cfg, openRouterShape(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider kind %q", cfg.Kind)
	}
}

const defaultOpenAICompatModel = "gpt-4o-mini"

func openAICompatShape(cfg ProviderConfig) requestShape {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com"
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAICompatModel
	}

	return requestShape{
		buildRequest: func(cfg ProviderConfig, systemPrompt, userPrompt string) (string, string, []byte, map[string]string, error) {
			req := struct {
				Model       string `json:"model"`
				Messages    []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
				MaxTokens   int     `json:"max_tokens,omitempty"`
				Temperature float64 `json:"temperature"`
			}{Model: model, MaxTokens: defaultMaxTokens, Temperature: 0.2}
			req.Messages = append(req.Messages,
				struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				}{Role: "system", Content: systemPrompt},
				struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				}{Role: "user", Content: userPrompt},
			)
			body, err := json.Marshal(req)
			if err != nil {
				return "", "", nil, nil, err
			}
			return "POST", endpoint + "/v1/chat/completions", body, map[string]string{
				"Authorization": "Bearer " + cfg.APIKey,
			}, nil
		},
		parseResponse: func(body []byte) (string, error) {
			var resp struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("parse response: %w", err)
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("empty response")
			}
			return resp.Choices[0].Message.Content, nil
		},
		parseError: genericJSONError,
	}
}

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

func anthropicShape(cfg ProviderConfig) requestShape {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	return requestShape{
		buildRequest: func(cfg ProviderConfig, systemPrompt, userPrompt string) (string, string, []byte, map[string]string, error) {
			req := struct {
				Model       string  `json:"model"`
				MaxTokens   int     `json:"max_tokens"`
				System      string  `json:"system,omitempty"`
				Temperature float64 `json:"temperature"`
				Messages    []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}{Model: model, MaxTokens: defaultMaxTokens, System: systemPrompt, Temperature: 0.2}
			req.Messages = append(req.Messages, struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			}{Role: "user", Content: userPrompt})
			body, err := json.Marshal(req)
			if err != nil {
				return "", "", nil, nil, err
			}
			return "POST", endpoint + "/v1/messages", body, map[string]string{
				"X-API-Key":         cfg.APIKey,
				"Anthropic-Version": "2023-06-01",
			}, nil
		},
		parseResponse: func(body []byte) (string, error) {
			var resp struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("parse response: %w", err)
			}
			if len(resp.Content) == 0 {
				return "", fmt.Errorf("empty response")
			}
			return resp.Content[0].Text, nil
		},
		parseError: genericJSONError,
	}
}

const defaultGeminiModel = "gemini-1.5-flash"

func geminiShape(cfg ProviderConfig) requestShape {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com"
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	return requestShape{
		buildRequest: func(cfg ProviderConfig, systemPrompt, userPrompt string) (string, string, []byte, map[string]string, error) {
			req := struct {
				SystemInstruction struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"systemInstruction"`
				Contents []struct {
					Role  string `json:"role"`
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"contents"`
			}{}
			req.SystemInstruction.Parts = []struct {
				Text string `json:"text"`
			}{{Text: systemPrompt}}
			req.Contents = []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			}{{Role: "user", Parts: []struct {
				Text string `json:"text"`
			}{{Text: userPrompt}}}}

			body, err := json.Marshal(req)
			if err != nil {
				return "", "", nil, nil, err
			}
			url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", endpoint, model, cfg.APIKey)
			return "POST", url, body, nil, nil
		},
		parseResponse: func(body []byte) (string, error) {
			var resp struct {
				Candidates []struct {
					Content struct {
						Parts []struct {
							Text string `json:"text"`
						} `json:"parts"`
					} `json:"content"`
				} `json:"candidates"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("parse response: %w", err)
			}
			if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
				return "", fmt.Errorf("empty response")
			}
			return resp.Candidates[0].Content.Parts[0].Text, nil
		},
		parseError: func(status int, body []byte) string {
			var e struct {
				Error struct {
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
				return e.Error.Message
			}
			return string(body)
		},
	}
}

const defaultOpenRouterModel = "anthropic/claude-3.5-sonnet"

func openRouterShape(cfg ProviderConfig) requestShape {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://openrouter.ai/api"
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenRouterModel
	}

	base := openAICompatShape(ProviderConfig{Endpoint: endpoint, Model: model})
	baseBuild := base.buildRequest
	base.buildRequest = func(cfg ProviderConfig, systemPrompt, userPrompt string) (string, string, []byte, map[string]string, error) {
		method, url, body, headers, err := baseBuild(cfg, systemPrompt, userPrompt)
		if headers == nil {
			headers = map[string]string{}
		}
		headers["HTTP-Referer"] = "https://fold.dev"
		headers["X-Title"] = "fold"
		return method, url, body, headers, err
	}
	return base
}
