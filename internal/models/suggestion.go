package models

import "time"

// LabelOptions are the label vocabularies a model may choose from
type LabelOptions struct {
	Sentiments []string `json:"sentiments"`
	Topics     []string `json:"topics"`
}

// LabelSuggestion returned by LLM providers (Gemini, Groq, OpenRouter, etc.)
type LabelSuggestion struct {
	Sentiment     string    `json:"sentiment"`
	Topic         string    `json:"topic"`
	Justification string    `json:"justification"`
	Confidence    float64   `json:"confidence,omitempty"`
	Provider      string    `json:"provider"`
	ModelVersion  string    `json:"model_version"`
	SuggestedAt   time.Time `json:"suggested_at"`
}

// Summary is an extractive-style summary of a record text
type Summary struct {
	Summary      string    `json:"summary"`
	Ratio        float64   `json:"ratio"`
	Provider     string    `json:"provider"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}
