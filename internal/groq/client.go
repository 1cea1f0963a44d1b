package groq

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

// DefaultBaseURL is Groq's OpenAI-compatible endpoint
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Client wraps the Groq API client
type Client struct {
	apiKey     string
	baseURL    string
	modelName  string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// Config for Groq client
type Config struct {
	APIKey     string
	ModelName  string // Default: "llama-3.3-70b-versatile"
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float32       `json:"temperature,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient creates a new Groq client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "llama-3.3-70b-versatile"
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

	logger.Info("Groq client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		modelName:  cfg.ModelName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close closes the Groq client
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Complete sends a chat completion and returns the first choice's content
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := groqRequest{
		Model: c.modelName,
		Messages: []groqMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Stream:      false,
		Temperature: 0.3,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			c.logger.Warn("Retrying Groq request",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.maxRetries))

			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		content, err := c.completeOnce(ctx, jsonData, attempt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, jsonData []byte, attempt int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Groq API error", zap.Error(err), zap.Int("attempt", attempt))
		return "", fmt.Errorf("groq API error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Groq API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
			zap.Int("attempt", attempt))
		return "", fmt.Errorf("groq API returned status %d: %s", resp.StatusCode, string(body))
	}

	var groqResp groqResponse
	if err := json.Unmarshal(body, &groqResp); err != nil {
		c.logger.Error("Failed to parse JSON response",
			zap.Error(err),
			zap.String("body", string(body)),
			zap.Int("attempt", attempt))
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(groqResp.Choices) == 0 {
		c.logger.Error("Empty response from Groq", zap.Int("attempt", attempt))
		return "", fmt.Errorf("empty response from groq")
	}

	c.logger.Debug("Groq completion succeeded",
		zap.String("id", groqResp.ID),
		zap.Int("total_tokens", groqResp.Usage.TotalTokens),
		zap.Int("attempt", attempt))

	return groqResp.Choices[0].Message.Content, nil
}

// GetModelInfo returns model information
func (c *Client) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"provider":    "groq",
		"model":       c.modelName,
		"max_retries": c.maxRetries,
		"retry_delay": c.retryDelay.String(),
	}
}
