package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// LLMService answers prompts through an OpenAI-compatible chat completions API.
type LLMService struct {
	client    *resty.Client
	model     string
	endpoint  string
	maxTokens int
}

// LLMConfig holds configuration for LLM service.
type LLMConfig struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// NewLLMService creates a new LLM service.
// Parameters:
//   - cfg: model, credentials and endpoint of the completion API.
//
// Returns:
//   - *LLMService: initialized client wrapper.
func NewLLMService(cfg *LLMConfig) *LLMService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	// Default to OpenAI compatible endpoint if not specified
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &LLMService{
		client:    client,
		model:     cfg.Model,
		endpoint:  baseURL + "/chat/completions",
		maxTokens: maxTokens,
	}
}

// GetModel returns the model name being used.
func (s *LLMService) GetModel() string {
	return s.model
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a system and user prompt and returns the model's reply.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - system: instructions for the model.
//   - user: the user turn, usually retrieved context plus the question.
//
// Returns:
//   - string: the first choice's content, trimmed.
//   - error: non-nil if the API request fails or returns no choices.
func (s *LLMService) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatCompletionRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   s.maxTokens,
		Temperature: 0.2,
	}

	var resp chatCompletionResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)

	if err != nil {
		return "", fmt.Errorf("failed to call LLM API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("LLM API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("LLM API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response (status: %d)", httpResp.StatusCode())
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
