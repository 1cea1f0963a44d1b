package llm

import (
	"fmt"
	"strings"
)

// LabelInstruction is the system instruction for label suggestions
const LabelInstruction = `You are a careful annotator of text datasets.
For every text you receive, pick exactly one sentiment label and exactly one topic label.
When a list of allowed labels is given, answer with one of those labels verbatim.
Answer with a single JSON object and nothing else:
{"sentiment": "<label>", "topic": "<label>", "justification": "<one sentence>", "confidence": <0..1>}`

// SummaryInstruction is the system instruction for summaries
const SummaryInstruction = `You summarize text extractively: select the most informative sentences of the input
and return them unchanged, in their original order.
Answer with a single JSON object and nothing else:
{"summary": "<selected sentences>"}`

// BuildLabelPrompt renders the user prompt for a label suggestion
func BuildLabelPrompt(text string, sentiments, topics []string) string {
	var b strings.Builder
	if len(sentiments) > 0 {
		fmt.Fprintf(&b, "Allowed sentiment labels: %s\n", strings.Join(quoteAll(sentiments), ", "))
	}
	if len(topics) > 0 {
		fmt.Fprintf(&b, "Allowed topic labels: %s\n", strings.Join(quoteAll(topics), ", "))
	}
	b.WriteString("\nText:\n")
	b.WriteString(text)
	return b.String()
}

// BuildSummaryPrompt renders the user prompt for a summary keeping roughly ratio of the sentences
func BuildSummaryPrompt(text string, ratio float64) string {
	return fmt.Sprintf("Keep about %.0f%% of the sentences.\n\nText:\n%s", ratio*100, text)
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
