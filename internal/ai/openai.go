package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// openAIConfig also serves openrouter and other chat-completions compatible
// endpoints.
type openAIConfig struct {
	APIKey  string            `json:"api_key"`
	BaseURL string            `json:"base_url"`
	Headers map[string]string `json:"headers"`
}

type openAIProvider struct {
	name    string
	apiKey  string
	baseURL string
	headers map[string]string
	client  *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	data, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %s", ErrRateLimited, p.name)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%s request failed: %s: %s", p.name, resp.Status, strings.TrimSpace(string(body)))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func chatCompletionsFactory(name, defaultBaseURL string) ProviderFactory {
	return func(args interface{}) (IProvider, error) {
		cfg := &openAIConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		baseURL := strings.TrimSpace(cfg.BaseURL)
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		return &openAIProvider{
			name:    name,
			apiKey:  strings.TrimSpace(cfg.APIKey),
			baseURL: baseURL,
			headers: cfg.Headers,
			client:  http.DefaultClient,
		}, nil
	}
}

func init() {
	Register("openai", chatCompletionsFactory("openai", defaultOpenAIBaseURL))
	Register("openrouter", chatCompletionsFactory("openrouter", defaultOpenRouterBaseURL))
}
