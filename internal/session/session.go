package session

import (
	"fmt"
	"sync"
	"time"

	"txtinspect/internal/dataset"
	"txtinspect/internal/models"
)

// Session serializes the events of one user over a State
type Session struct {
	ID        string
	FileName  string
	CreatedAt time.Time

	mu       sync.Mutex
	state    State
	lastSeen time.Time
	now      func() time.Time
}

// Export is the result of exporting a session
type Export struct {
	Data     []byte
	Dataset  *models.Dataset
	RowsIn   int
	Stats    CommitStats
	FileName string
}

func newSession(id, fileName string, state State, now func() time.Time) *Session {
	t := now()
	return &Session{
		ID:        id,
		FileName:  fileName,
		CreatedAt: t,
		state:     state,
		lastSeen:  t,
		now:       now,
	}
}

// Dispatch applies ev and returns the resulting state
func (s *Session) Dispatch(ev Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Apply(s.state, ev)
	s.lastSeen = s.now()
	return s.state
}

// State returns the current state. Reads count as activity for the idle sweep.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = s.now()
	return s.state
}

// Current returns the record under the cursor together with the cursor
func (s *Session) Current() (models.Record, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = s.now()
	rec, ok := s.state.Current()
	return rec, s.state.Cursor, ok
}

// QueueCurrent queues an edit for the record under the cursor
func (s *Session) QueueCurrent(edit models.PendingEdit) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	edit.Index = s.state.Cursor
	s.state = Apply(s.state, QueueEdit{Edit: edit})
	s.lastSeen = s.now()
	return s.state
}

// Commit builds the derived dataset without clearing the queue
func (s *Session) Commit() (*models.Dataset, CommitStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = s.now()
	return Commit(s.state)
}

// Export commits the queue, encodes the derived dataset as CSV, clears the
// queue and makes the derived dataset the session's dataset.
func (s *Session) Export() (*Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	derived, stats := Commit(s.state)
	data, err := dataset.Encode(derived)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset: %w", err)
	}

	rowsIn := s.state.Dataset.Len()
	s.state = Apply(s.state, ClearQueue{})
	s.state = Apply(s.state, ReplaceDataset{Dataset: derived})
	s.lastSeen = s.now()

	return &Export{
		Data:     data,
		Dataset:  derived,
		RowsIn:   rowsIn,
		Stats:    stats,
		FileName: dataset.ExportFileName,
	}, nil
}

// LastSeen reports the time of the last interaction
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
