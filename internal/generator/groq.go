package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/finsight/finsight/internal/models"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// GroqConfig configures the Groq chat completions client.
type GroqConfig struct {
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// GroqClient implements ChatClient against the Groq OpenAI-compatible API.
// It performs no retries itself; the Generator owns retry and timeout policy.
type GroqClient struct {
	baseURL     string
	apiKey      string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewGroqClient creates a client. The API key may be empty for local
// OpenAI-compatible endpoints that do not authenticate.
func NewGroqClient(cfg GroqConfig) *GroqClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGroqBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &GroqClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
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

// Complete sends one chat completion request for the given model.
func (c *GroqClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &models.ProviderError{Provider: "groq", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.ProviderError{Provider: "groq", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &models.ProviderError{
			Provider: "groq",
			Err:      fmt.Errorf("model %s: status %d: %s", model, resp.StatusCode, truncateBody(body)),
		}
	}
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &models.ProviderError{Provider: "groq", Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", &models.ProviderError{Provider: "groq", Err: fmt.Errorf("model %s: no choices returned", model)}
	}
	return out.Choices[0].Message.Content, nil
}

func truncateBody(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
