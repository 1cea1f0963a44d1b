// Package metrics scores predicted labels against reference labels.
package metrics

import (
	"fmt"

	"txtinspect/internal/models"
)

// Accuracy is the share of positions where predicted equals actual
func Accuracy(actual, predicted []string) (float64, error) {
	if err := check(actual, predicted); err != nil {
		return 0, err
	}
	if len(actual) == 0 {
		return 0, nil
	}

	correct := 0
	for i := range actual {
		if actual[i] == predicted[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(actual)), nil
}

// WeightedF1 averages per-label F1 weighted by each label's support in actual.
// Labels that only occur in predicted have zero support and do not contribute.
// A label with no true positives scores zero.
func WeightedF1(actual, predicted []string) (float64, error) {
	if err := check(actual, predicted); err != nil {
		return 0, err
	}
	if len(actual) == 0 {
		return 0, nil
	}

	tp := make(map[string]int)
	fp := make(map[string]int)
	support := make(map[string]int)
	for i := range actual {
		support[actual[i]]++
		if actual[i] == predicted[i] {
			tp[actual[i]]++
		} else {
			fp[predicted[i]]++
		}
	}

	var total float64
	for label, n := range support {
		if tp[label] == 0 {
			continue
		}
		precision := float64(tp[label]) / float64(tp[label]+fp[label])
		recall := float64(tp[label]) / float64(n)
		f1 := 2 * precision * recall / (precision + recall)
		total += f1 * float64(n)
	}
	return total / float64(len(actual)), nil
}

// Score computes accuracy and weighted F1 together
func Score(actual, predicted []string) (models.Scores, error) {
	acc, err := Accuracy(actual, predicted)
	if err != nil {
		return models.Scores{}, err
	}
	f1, err := WeightedF1(actual, predicted)
	if err != nil {
		return models.Scores{}, err
	}
	return models.Scores{Accuracy: acc, F1Weighted: f1, Support: len(actual)}, nil
}

func check(actual, predicted []string) error {
	if len(actual) != len(predicted) {
		return fmt.Errorf("label count mismatch: %d actual, %d predicted", len(actual), len(predicted))
	}
	return nil
}
