package models

import "time"

// Job statuses
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Scores holds classification quality for one label column
type Scores struct {
	Accuracy   float64 `json:"accuracy"`
	F1Weighted float64 `json:"f1"`
	Support    int     `json:"support"`
}

// EvaluationResult compares dataset labels with model suggestions
type EvaluationResult struct {
	Sentiment Scores `json:"sentiment"`
	Topics    Scores `json:"topics"`
}

// Job represents an async evaluation job
type Job struct {
	ID             string            `json:"id" db:"id"`
	SessionID      string            `json:"session_id" db:"session_id"`
	Status         string            `json:"status" db:"status"`
	TotalCount     int               `json:"total_count" db:"total_count"`
	ProcessedCount int               `json:"processed_count" db:"processed_count"`
	FailedCount    int               `json:"failed_count" db:"failed_count"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage   string            `json:"error_message,omitempty" db:"error_message"`
	Result         *EvaluationResult `json:"result,omitempty" db:"-"`
}

// ExportRecord is one entry of the export history
type ExportRecord struct {
	ID         int64     `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	FileName   string    `json:"file_name" db:"file_name"`
	RowsIn     int       `json:"rows_in" db:"rows_in"`
	RowsOut    int       `json:"rows_out" db:"rows_out"`
	Dropped    int       `json:"dropped" db:"dropped"`
	Relabeled  int       `json:"relabeled" db:"relabeled"`
	Bytes      int       `json:"bytes" db:"bytes"`
	ExportedAt time.Time `json:"exported_at" db:"exported_at"`
}
