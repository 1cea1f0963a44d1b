package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"txtinspect/internal/models"

	"go.uber.org/zap"
)

// DefaultSummaryRatio keeps half of the sentences
const DefaultSummaryRatio = 0.5

// maxSummaryInput bounds the text sent for summarization, in runes
const maxSummaryInput = 8000

// Labeler turns a Provider into label suggestions and summaries
type Labeler struct {
	provider Provider
	logger   *zap.Logger
}

// NewLabeler creates a new labeler
func NewLabeler(provider Provider, logger *zap.Logger) *Labeler {
	return &Labeler{
		provider: provider,
		logger:   logger,
	}
}

type labelResponse struct {
	Sentiment     string  `json:"sentiment"`
	Topic         string  `json:"topic"`
	Justification string  `json:"justification"`
	Confidence    float64 `json:"confidence"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// SuggestLabels asks the model for a sentiment and topic label. When opts
// carries vocabularies the answer must come from them; matching ignores case
// and the canonical spelling from opts is returned.
func (l *Labeler) SuggestLabels(ctx context.Context, text string, opts models.LabelOptions) (*models.LabelSuggestion, error) {
	raw, err := l.provider.Complete(ctx, LabelInstruction, BuildLabelPrompt(text, opts.Sentiments, opts.Topics))
	if err != nil {
		return nil, fmt.Errorf("label completion failed: %w", err)
	}

	var resp labelResponse
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &resp); err != nil {
		l.logger.Error("Failed to parse label response",
			zap.Error(err),
			zap.String("original_response", raw))
		return nil, fmt.Errorf("failed to parse label response: %w", err)
	}

	sentiment, ok := matchLabel(resp.Sentiment, opts.Sentiments)
	if !ok {
		return nil, fmt.Errorf("model returned unknown sentiment label %q", resp.Sentiment)
	}
	topic, ok := matchLabel(resp.Topic, opts.Topics)
	if !ok {
		return nil, fmt.Errorf("model returned unknown topic label %q", resp.Topic)
	}

	provider, modelVersion := l.modelInfo()
	return &models.LabelSuggestion{
		Sentiment:     sentiment,
		Topic:         topic,
		Justification: resp.Justification,
		Confidence:    resp.Confidence,
		Provider:      provider,
		ModelVersion:  modelVersion,
		SuggestedAt:   time.Now(),
	}, nil
}

// Summarize returns an extractive summary keeping about ratio of the sentences.
// Newlines are flattened before the text is sent.
func (l *Labeler) Summarize(ctx context.Context, text string, ratio float64) (*models.Summary, error) {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultSummaryRatio
	}

	body := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	if body == "" {
		return nil, fmt.Errorf("nothing to summarize")
	}
	if r := []rune(body); len(r) > maxSummaryInput {
		body = string(r[:maxSummaryInput])
	}

	raw, err := l.provider.Complete(ctx, SummaryInstruction, BuildSummaryPrompt(body, ratio))
	if err != nil {
		return nil, fmt.Errorf("summary completion failed: %w", err)
	}

	var resp summaryResponse
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &resp); err != nil {
		l.logger.Error("Failed to parse summary response",
			zap.Error(err),
			zap.String("original_response", raw))
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}

	provider, modelVersion := l.modelInfo()
	return &models.Summary{
		Summary:      strings.TrimSpace(resp.Summary),
		Ratio:        ratio,
		Provider:     provider,
		ModelVersion: modelVersion,
		CreatedAt:    time.Now(),
	}, nil
}

// Close closes the underlying provider
func (l *Labeler) Close() error {
	return l.provider.Close()
}

// GetModelInfo returns the underlying provider's model information
func (l *Labeler) GetModelInfo() map[string]interface{} {
	return l.provider.GetModelInfo()
}

// ProvidersInfo lists every provider of a multi-provider client with its
// failure count and whether it is current. It is nil for a single provider.
func (l *Labeler) ProvidersInfo() []map[string]interface{} {
	multi, ok := l.provider.(*MultiProviderClient)
	if !ok {
		return nil
	}
	return multi.GetProvidersInfo()
}

func (l *Labeler) modelInfo() (string, string) {
	info := l.provider.GetModelInfo()
	provider := "unknown"
	modelVersion := "unknown"
	if p, ok := info["provider"].(string); ok {
		provider = p
	}
	if m, ok := info["model"].(string); ok {
		modelVersion = m
	}
	return provider, modelVersion
}

// matchLabel maps got onto the allowed vocabulary. An empty vocabulary accepts anything.
func matchLabel(got string, allowed []string) (string, bool) {
	got = strings.TrimSpace(got)
	if len(allowed) == 0 {
		return got, true
	}
	for _, label := range allowed {
		if strings.EqualFold(label, got) {
			return label, true
		}
	}
	return "", false
}

// CleanJSON strips markdown code fences around a JSON answer
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
