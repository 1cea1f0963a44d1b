package session

import "txtinspect/internal/models"

// CommitStats counts what a commit did
type CommitStats struct {
	Dropped   int `json:"dropped"`
	Relabeled int `json:"relabeled"`
	Skipped   int `json:"skipped"`
}

// Commit materializes the queued edits into a new dataset. Edits run in
// queue order against a working copy: relabels overwrite sentiment and
// topics, drops are collected and removed at the end. Survivors keep their
// relative order and are re-indexed from zero. Edits pointing outside the
// dataset are skipped. The source dataset and the queue are left untouched.
func Commit(s State) (*models.Dataset, CommitStats) {
	var stats CommitStats

	working := s.Dataset.Clone()
	if working == nil {
		working = &models.Dataset{Records: []models.Record{}}
	}

	drop := make(map[int]struct{})
	for _, edit := range s.Queue {
		if edit.Index < 0 || edit.Index >= len(working.Records) {
			stats.Skipped++
			continue
		}
		switch edit.Action {
		case models.ActionDrop:
			drop[edit.Index] = struct{}{}
		case models.ActionRelabel:
			working.Records[edit.Index].Sentiment = edit.Sentiment
			working.Records[edit.Index].Topics = edit.Topic
			stats.Relabeled++
		default:
			stats.Skipped++
		}
	}

	if len(drop) == 0 {
		return working, stats
	}

	kept := make([]models.Record, 0, len(working.Records)-len(drop))
	for i, rec := range working.Records {
		if _, ok := drop[i]; ok {
			continue
		}
		kept = append(kept, rec)
	}
	working.Records = kept
	stats.Dropped = len(drop)

	return working, stats
}
