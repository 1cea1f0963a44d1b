package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"txtinspect/internal/dataset"
	"txtinspect/internal/metrics"
	"txtinspect/internal/models"
	"txtinspect/internal/repository"
	"txtinspect/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidDataset wraps upload parse failures
	ErrInvalidDataset = errors.New("invalid dataset")
	// ErrInvalidRequest wraps malformed edit, cursor or preview requests
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRecordNotFound is returned when the cursor points outside the dataset
	ErrRecordNotFound = errors.New("record not found")
	// ErrLLMUnavailable is returned by model helpers when no provider is configured
	ErrLLMUnavailable = errors.New("no language model configured")
	// ErrNothingToEvaluate is returned when a session has no records to score
	ErrNothingToEvaluate = errors.New("nothing to evaluate")
)

// LLMClient interface for any label/summary model
type LLMClient interface {
	SuggestLabels(ctx context.Context, text string, opts models.LabelOptions) (*models.LabelSuggestion, error)
	Summarize(ctx context.Context, text string, ratio float64) (*models.Summary, error)
	Close() error
	GetModelInfo() map[string]interface{}
}

// Options tune the inspector
type Options struct {
	MinWords        int           // Default word filter for uploads, 0 disables
	EvaluationLimit int           // Max records scored per evaluation job
	EvaluationDelay time.Duration // Pause between model calls inside a job
}

// EditRequest asks for a pending edit. A nil Index targets the record under the cursor.
type EditRequest struct {
	Action    string `json:"action" binding:"required"`
	Index     *int   `json:"index,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

// SessionView is what clients see of a session
type SessionView struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
	Columns   []string  `json:"columns"`
	Records   int       `json:"records"`
	session.State
	Labels models.LabelOptions `json:"labels"`
}

// Inspector handles dataset inspection business logic
type Inspector struct {
	sessions  *session.Manager
	llmClient LLMClient
	repo      *repository.Repository
	opts      Options
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewInspector creates a new inspector service. llmClient may be nil, in
// which case the model helpers return ErrLLMUnavailable.
func NewInspector(
	sessions *session.Manager,
	llmClient LLMClient,
	repo *repository.Repository,
	opts Options,
	logger *zap.Logger,
) *Inspector {
	if opts.EvaluationLimit <= 0 {
		opts.EvaluationLimit = 50
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Inspector{
		sessions:  sessions,
		llmClient: llmClient,
		repo:      repo,
		opts:      opts,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// CreateSession loads a CSV upload and opens a session over it.
// A negative minWords selects the configured default.
func (i *Inspector) CreateSession(r io.Reader, fileName string, minWords int) (*SessionView, dataset.LoadStats, error) {
	ds, stats, err := dataset.Load(r)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}

	if minWords < 0 {
		minWords = i.opts.MinWords
	}
	ds = dataset.Filter(ds, minWords)

	if stats.DroppedRows > 0 || stats.PaddedRows > 0 {
		i.logger.Warn("Upload contained malformed rows",
			zap.String("file", fileName),
			zap.Int("dropped", stats.DroppedRows),
			zap.Int("padded", stats.PaddedRows))
	}

	s := i.sessions.Create(ds, fileName)
	return view(s), stats, nil
}

// GetSession returns the session view
func (i *Inspector) GetSession(id string) (*SessionView, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return view(s), nil
}

// DeleteSession discards a session
func (i *Inspector) DeleteSession(id string) error {
	return i.sessions.Delete(id)
}

// CurrentRecord returns the record under the cursor
func (i *Inspector) CurrentRecord(id string) (*models.IndexedRecord, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	rec, cursor, ok := s.Current()
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrRecordNotFound, cursor)
	}
	return &models.IndexedRecord{Index: cursor, Record: rec}, nil
}

// MoveCursor advances the cursor one record in the given direction
func (i *Inspector) MoveCursor(id, direction string) (*SessionView, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	dir, err := models.ParseDirection(direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	s.Dispatch(session.AdvanceCursor{Direction: dir})
	return view(s), nil
}

// Preview returns the first preview_rows records
func (i *Inspector) Preview(id string) ([]models.IndexedRecord, int, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, 0, err
	}
	st := s.State()
	return models.Indexed(st.Dataset.Head(st.PreviewRows)), st.PreviewRows, nil
}

// ResizePreview adds delta rows to the preview
func (i *Inspector) ResizePreview(id string, delta int) ([]models.IndexedRecord, int, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, 0, err
	}
	st := s.Dispatch(session.ResizePreview{Delta: delta})
	return models.Indexed(st.Dataset.Head(st.PreviewRows)), st.PreviewRows, nil
}

// QueueEdit queues an edit. Relabels missing a sentiment or topic fall back
// to the first value of that column.
func (i *Inspector) QueueEdit(id string, req EditRequest) (*SessionView, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	action, err := models.ParseAction(req.Action)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	edit := models.PendingEdit{Action: action}
	if action == models.ActionRelabel {
		edit.Sentiment, edit.Topic = dataset.DefaultLabels(dataset.Labels(s.State().Dataset), req.Sentiment, req.Topic)
	}

	if req.Index == nil {
		s.QueueCurrent(edit)
	} else {
		edit.Index = *req.Index
		s.Dispatch(session.QueueEdit{Edit: edit})
	}
	return view(s), nil
}

// ClearEdits empties the edit queue
func (i *Inspector) ClearEdits(id string) (*SessionView, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	s.Dispatch(session.ClearQueue{})
	return view(s), nil
}

// Commit returns the dataset the queued edits would produce
func (i *Inspector) Commit(id string) (*models.Dataset, session.CommitStats, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, session.CommitStats{}, err
	}
	ds, stats := s.Commit()
	return ds, stats, nil
}

// Export commits, encodes and records the export. A failure to write the
// history entry is logged; the export itself has already taken effect.
func (i *Inspector) Export(id string) (*session.Export, error) {
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	exp, err := s.Export()
	if err != nil {
		return nil, err
	}

	rec := &models.ExportRecord{
		SessionID:  s.ID,
		FileName:   exp.FileName,
		RowsIn:     exp.RowsIn,
		RowsOut:    exp.Dataset.Len(),
		Dropped:    exp.Stats.Dropped,
		Relabeled:  exp.Stats.Relabeled,
		Bytes:      len(exp.Data),
		ExportedAt: time.Now().UTC(),
	}
	if err := i.repo.SaveExport(rec); err != nil {
		i.logger.Error("Failed to record export", zap.String("session_id", s.ID), zap.Error(err))
	}

	i.logger.Info("Dataset exported",
		zap.String("session_id", s.ID),
		zap.Int("rows_in", rec.RowsIn),
		zap.Int("rows_out", rec.RowsOut),
		zap.Int("dropped", rec.Dropped),
		zap.Int("relabeled", rec.Relabeled))

	return exp, nil
}

// ListExports returns the export history, optionally for one session
func (i *Inspector) ListExports(sessionID string, limit int) ([]*models.ExportRecord, error) {
	return i.repo.ListExports(sessionID, limit)
}

// Suggest asks the model for labels for the record under the cursor
func (i *Inspector) Suggest(ctx context.Context, id string) (*models.LabelSuggestion, error) {
	if i.llmClient == nil {
		return nil, ErrLLMUnavailable
	}
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	rec, cursor, ok := s.Current()
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrRecordNotFound, cursor)
	}

	suggestion, err := i.llmClient.SuggestLabels(ctx, rec.Text, dataset.Labels(s.State().Dataset))
	if err != nil {
		return nil, fmt.Errorf("label suggestion failed: %w", err)
	}
	return suggestion, nil
}

// Summarize summarizes the text of the record under the cursor
func (i *Inspector) Summarize(ctx context.Context, id string, ratio float64) (*models.Summary, error) {
	if i.llmClient == nil {
		return nil, ErrLLMUnavailable
	}
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	rec, cursor, ok := s.Current()
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrRecordNotFound, cursor)
	}

	summary, err := i.llmClient.Summarize(ctx, rec.Text, ratio)
	if err != nil {
		return nil, fmt.Errorf("summarization failed: %w", err)
	}
	return summary, nil
}

// StartEvaluation starts an async job that scores model labels against the
// dataset labels for up to limit records from the top of the dataset.
func (i *Inspector) StartEvaluation(id string, limit int) (*models.Job, error) {
	if i.llmClient == nil {
		return nil, ErrLLMUnavailable
	}
	s, err := i.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > i.opts.EvaluationLimit {
		limit = i.opts.EvaluationLimit
	}
	ds := s.State().Dataset
	records := ds.Head(limit)
	if len(records) == 0 {
		return nil, ErrNothingToEvaluate
	}

	job := &models.Job{
		ID:         uuid.New().String(),
		SessionID:  s.ID,
		Status:     models.JobPending,
		TotalCount: len(records),
		CreatedAt:  time.Now().UTC(),
	}
	if err := i.repo.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	created := *job

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.processEvaluation(job, records, dataset.Labels(ds))
	}()

	return &created, nil
}

// processEvaluation runs an evaluation job to completion
func (i *Inspector) processEvaluation(job *models.Job, records []models.Record, opts models.LabelOptions) {
	ctx := i.ctx

	job.Status = models.JobProcessing
	i.updateJob(job)

	var actualSentiment, predictedSentiment, actualTopic, predictedTopic []string
	for n, rec := range records {
		suggestion, err := i.llmClient.SuggestLabels(ctx, rec.Text, opts)
		if err != nil {
			if ctx.Err() != nil {
				i.finishJob(job, nil, "evaluation cancelled")
				return
			}
			i.logger.Error("Failed to label record in evaluation",
				zap.String("job_id", job.ID),
				zap.Int("index", n),
				zap.Error(err))
			job.FailedCount++
		} else {
			actualSentiment = append(actualSentiment, rec.Sentiment)
			predictedSentiment = append(predictedSentiment, suggestion.Sentiment)
			actualTopic = append(actualTopic, rec.Topics)
			predictedTopic = append(predictedTopic, suggestion.Topic)
			job.ProcessedCount++
		}

		i.updateJob(job)

		if i.opts.EvaluationDelay > 0 && n < len(records)-1 {
			select {
			case <-ctx.Done():
				i.finishJob(job, nil, "evaluation cancelled")
				return
			case <-time.After(i.opts.EvaluationDelay):
			}
		}
	}

	if len(actualSentiment) == 0 {
		i.finishJob(job, nil, "no record could be labeled")
		return
	}

	sentiment, err := metrics.Score(actualSentiment, predictedSentiment)
	if err != nil {
		i.finishJob(job, nil, err.Error())
		return
	}
	topics, err := metrics.Score(actualTopic, predictedTopic)
	if err != nil {
		i.finishJob(job, nil, err.Error())
		return
	}

	i.finishJob(job, &models.EvaluationResult{Sentiment: sentiment, Topics: topics}, "")
}

func (i *Inspector) finishJob(job *models.Job, result *models.EvaluationResult, failure string) {
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt
	job.Result = result
	if failure != "" {
		job.Status = models.JobFailed
		job.ErrorMessage = failure
	} else {
		job.Status = models.JobCompleted
	}
	i.updateJob(job)

	i.logger.Info("Evaluation job finished",
		zap.String("job_id", job.ID),
		zap.String("status", job.Status),
		zap.Int("processed", job.ProcessedCount),
		zap.Int("failed", job.FailedCount))
}

func (i *Inspector) updateJob(job *models.Job) {
	if err := i.repo.UpdateJob(job); err != nil {
		i.logger.Error("Failed to update job", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// GetJob returns job status
func (i *Inspector) GetJob(jobID string) (*models.Job, error) {
	return i.repo.GetJob(jobID)
}

// ModelInfo describes the configured model, or nil without one
func (i *Inspector) ModelInfo() map[string]interface{} {
	if i.llmClient == nil {
		return nil
	}
	return i.llmClient.GetModelInfo()
}

// providerLister is implemented by clients that fail over between providers
type providerLister interface {
	ProvidersInfo() []map[string]interface{}
}

// ProvidersInfo lists the failover providers, or nil when the client has none
func (i *Inspector) ProvidersInfo() []map[string]interface{} {
	lister, ok := i.llmClient.(providerLister)
	if !ok {
		return nil
	}
	return lister.ProvidersInfo()
}

// ActiveSessions returns the number of live sessions
func (i *Inspector) ActiveSessions() int {
	return i.sessions.Len()
}

// Close cancels running jobs and waits for them to stop
func (i *Inspector) Close() {
	i.cancel()
	i.wg.Wait()
}

func view(s *session.Session) *SessionView {
	st := s.State()
	var columns []string
	if st.Dataset != nil {
		columns = st.Dataset.Columns
	}
	return &SessionView{
		ID:        s.ID,
		FileName:  s.FileName,
		CreatedAt: s.CreatedAt,
		Columns:   columns,
		Records:   st.Dataset.Len(),
		State:     st,
		Labels:    dataset.Labels(st.Dataset),
	}
}
