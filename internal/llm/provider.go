package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"txtinspect/internal/gemini"
	"txtinspect/internal/groq"
	"txtinspect/internal/openrouter"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrAllProvidersFailed is returned when every configured provider failed a request
var ErrAllProvidersFailed = errors.New("all providers failed")

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	ProviderGemini     ProviderType = "gemini"
	ProviderGroq       ProviderType = "groq"
	ProviderOpenRouter ProviderType = "openrouter"
)

// DefaultRequestsPerMinute is a conservative default for free tiers
const DefaultRequestsPerMinute = 8

// ProviderConfig holds configuration for a single provider instance
type ProviderConfig struct {
	Type       ProviderType  `yaml:"type"`
	APIKey     string        `yaml:"api_key"`
	ModelName  string        `yaml:"model_name"`
	BaseURL    string        `yaml:"base_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Rate limiting per provider
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Provider is anything that can turn a system instruction and a prompt into text
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// NewProvider builds the provider described by cfg
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	case ProviderGroq:
		return groq.NewClient(groq.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	case ProviderOpenRouter:
		return openrouter.NewClient(openrouter.Config{
			APIKey:     cfg.APIKey,
			ModelName:  cfg.ModelName,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// RateLimitedProvider wraps a provider with a token bucket
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewRateLimitedProvider allows requestsPerMinute calls per minute with a full bucket at start
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) *RateLimitedProvider {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.Complete(ctx, system, prompt)
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}

func (p *RateLimitedProvider) GetModelInfo() map[string]interface{} {
	return p.provider.GetModelInfo()
}

// MultiProviderClient manages multiple LLM providers with fallback
type MultiProviderClient struct {
	providers    []*RateLimitedProvider
	currentIndex int
	mu           sync.RWMutex
	logger       *zap.Logger
	failureCount map[int]int
	maxFailures  int
}

// MultiProviderConfig holds configuration for multiple providers
type MultiProviderConfig struct {
	Providers   []ProviderConfig
	MaxFailures int // Max consecutive failures before switching provider
}

// NewMultiProviderClient creates a new multi-provider client.
// Providers that fail to initialize are logged and skipped.
func NewMultiProviderClient(cfg MultiProviderConfig, logger *zap.Logger) (*MultiProviderClient, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	providers := make([]*RateLimitedProvider, 0, len(cfg.Providers))
	for i, providerCfg := range cfg.Providers {
		provider, err := NewProvider(providerCfg, logger)
		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", string(providerCfg.Type)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		rateLimit := providerCfg.RequestsPerMinute
		if rateLimit == 0 {
			rateLimit = DefaultRequestsPerMinute
		}
		providers = append(providers, NewRateLimitedProvider(provider, rateLimit, logger))

		logger.Info("Provider initialized",
			zap.String("type", string(providerCfg.Type)),
			zap.String("model", providerCfg.ModelName),
			zap.Int("rate_limit", rateLimit),
			zap.Int("index", i))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return newMultiProviderClient(providers, cfg.MaxFailures, logger), nil
}

func newMultiProviderClient(providers []*RateLimitedProvider, maxFailures int, logger *zap.Logger) *MultiProviderClient {
	if maxFailures == 0 {
		maxFailures = 3
	}
	return &MultiProviderClient{
		providers:    providers,
		logger:       logger,
		failureCount: make(map[int]int),
		maxFailures:  maxFailures,
	}
}

func (c *MultiProviderClient) getCurrentProvider() (*RateLimitedProvider, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.providers[c.currentIndex], c.currentIndex
}

func (c *MultiProviderClient) switchToNextProvider(from int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request already moved on
	if c.currentIndex != from {
		return
	}
	c.currentIndex = (c.currentIndex + 1) % len(c.providers)

	c.logger.Info("Switching provider",
		zap.Int("from_index", from),
		zap.Int("to_index", c.currentIndex),
		zap.Int("total_providers", len(c.providers)))
}

// recordFailure reports whether the provider reached its failure budget
func (c *MultiProviderClient) recordFailure(providerIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failureCount[providerIndex]++
	if c.failureCount[providerIndex] >= c.maxFailures {
		c.logger.Warn("Provider reached max failures",
			zap.Int("provider_index", providerIndex),
			zap.Int("failures", c.failureCount[providerIndex]))
		c.failureCount[providerIndex] = 0
		return true
	}
	return false
}

func (c *MultiProviderClient) resetFailureCount(providerIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount[providerIndex] = 0
}

// Complete tries the current provider and falls back to the following ones on failure
func (c *MultiProviderClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	_, start := c.getCurrentProvider()

	var lastErr error
	for attempts := 0; attempts < len(c.providers); attempts++ {
		providerIndex := (start + attempts) % len(c.providers)
		provider := c.providers[providerIndex]

		c.logger.Debug("Attempting completion",
			zap.Int("provider_index", providerIndex),
			zap.Int("attempt", attempts+1))

		result, err := provider.Complete(ctx, system, prompt)
		if err == nil {
			c.resetFailureCount(providerIndex)
			return result, nil
		}
		lastErr = err

		c.logger.Error("Provider failed",
			zap.Int("provider_index", providerIndex),
			zap.Error(err))

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		// Rate limit errors switch immediately
		if c.recordFailure(providerIndex) || isRateLimitError(err) {
			c.switchToNextProvider(providerIndex)
		}
	}

	return "", fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}

// Close closes all providers
func (c *MultiProviderClient) Close() error {
	var errs []error
	for i, provider := range c.providers {
		if err := provider.Close(); err != nil {
			c.logger.Error("Failed to close provider",
				zap.Int("index", i),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetModelInfo returns information about the current provider
func (c *MultiProviderClient) GetModelInfo() map[string]interface{} {
	provider, index := c.getCurrentProvider()
	info := provider.GetModelInfo()

	c.mu.RLock()
	defer c.mu.RUnlock()
	info["provider_index"] = index
	info["total_providers"] = len(c.providers)
	info["failure_count"] = c.failureCount[index]
	return info
}

// GetProvidersInfo returns information about all providers
func (c *MultiProviderClient) GetProvidersInfo() []map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := make([]map[string]interface{}, len(c.providers))
	for i, provider := range c.providers {
		providerInfo := provider.GetModelInfo()
		providerInfo["is_current"] = i == c.currentIndex
		providerInfo["failure_count"] = c.failureCount[i]
		info[i] = providerInfo
	}
	return info
}
