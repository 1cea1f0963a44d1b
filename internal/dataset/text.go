package dataset

import (
	"strings"

	"txtinspect/internal/models"
)

// CleanText removes blank-paragraph markers and collapses whitespace runs
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\n\n", "")
	return strings.Join(strings.Fields(text), " ")
}

// WordCount counts whitespace separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Filter keeps records whose text has more than minWords words and cleans
// the text of the survivors. minWords <= 0 returns the dataset unchanged.
func Filter(ds *models.Dataset, minWords int) *models.Dataset {
	if ds == nil || minWords <= 0 {
		return ds
	}

	out := &models.Dataset{
		Columns:      append([]string(nil), ds.Columns...),
		Header:       append([]string(nil), ds.Header...),
		ExtraColumns: append([]string(nil), ds.ExtraColumns...),
		Records:      make([]models.Record, 0, len(ds.Records)),
	}
	for _, rec := range ds.Records {
		if WordCount(rec.Text) <= minWords {
			continue
		}
		rec = rec.Clone()
		rec.Text = CleanText(rec.Text)
		out.Records = append(out.Records, rec)
	}
	return out
}
