package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the OpenRouter API endpoint
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Client is an OpenRouter chat completion client
type Client struct {
	apiKey     string
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// Config for OpenRouter client
type Config struct {
	APIKey     string
	ModelName  string // Default: "meta-llama/llama-3.3-70b-instruct:free"
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Temperature float32             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// NewClient creates a new OpenRouter client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "meta-llama/llama-3.3-70b-instruct:free"
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	logger.Info("OpenRouter client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		modelName:  cfg.ModelName,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Complete sends a chat completion, retrying failed attempts
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		content, err := c.completeOnce(ctx, system, prompt, attempt)
		if err == nil {
			return content, nil
		}

		lastErr = err
		c.logger.Warn("OpenRouter API attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.maxRetries),
			zap.Error(err))

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt < c.maxRetries {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, system, prompt string, attempt int) (string, error) {
	reqBody := openRouterRequest{
		Model: c.modelName,
		Messages: []openRouterMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   1024,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "Text Data Label Inspector")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("OpenRouter API error", zap.Error(err), zap.Int("attempt", attempt))
		return "", fmt.Errorf("openrouter API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OpenRouter API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
			zap.Int("attempt", attempt))
		return "", fmt.Errorf("openrouter API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp openRouterResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	// Errors can arrive with a 200 status
	if apiResp.Error != nil {
		return "", fmt.Errorf("openrouter API error: %s", apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in openrouter response")
	}

	return apiResp.Choices[0].Message.Content, nil
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// GetModelInfo returns information about the model being used.
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider": "openrouter",
		"model":    c.modelName,
		"base_url": c.baseURL,
	}
}
