package dataset

import "txtinspect/internal/models"

// Labels returns the distinct sentiment and topic values in order of first appearance
func Labels(ds *models.Dataset) models.LabelOptions {
	opts := models.LabelOptions{
		Sentiments: []string{},
		Topics:     []string{},
	}
	if ds == nil {
		return opts
	}

	seenSentiment := make(map[string]struct{})
	seenTopic := make(map[string]struct{})
	for _, rec := range ds.Records {
		if _, ok := seenSentiment[rec.Sentiment]; !ok {
			seenSentiment[rec.Sentiment] = struct{}{}
			opts.Sentiments = append(opts.Sentiments, rec.Sentiment)
		}
		if _, ok := seenTopic[rec.Topics]; !ok {
			seenTopic[rec.Topics] = struct{}{}
			opts.Topics = append(opts.Topics, rec.Topics)
		}
	}
	return opts
}

// DefaultLabels picks the first option of each vocabulary for empty values
func DefaultLabels(opts models.LabelOptions, sentiment, topic string) (string, string) {
	if sentiment == "" && len(opts.Sentiments) > 0 {
		sentiment = opts.Sentiments[0]
	}
	if topic == "" && len(opts.Topics) > 0 {
		topic = opts.Topics[0]
	}
	return sentiment, topic
}
