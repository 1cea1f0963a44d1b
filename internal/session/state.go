package session

import (
	"slices"

	"txtinspect/internal/models"
)

// CursorBounds selects how far the cursor may move forward
type CursorBounds int

const (
	// BoundsClamped keeps the cursor inside [0, len(dataset)-1]
	BoundsClamped CursorBounds = iota
	// BoundsLegacy lets "next" advance while cursor <= len(dataset),
	// so the cursor can rest past the last record.
	BoundsLegacy
)

// State is everything a session remembers between interactions.
// Apply never mutates a State in place; slices are replaced, not edited,
// so a State handed out to a caller stays valid.
type State struct {
	Dataset     *models.Dataset      `json:"-"`
	Cursor      int                  `json:"cursor"`
	Queue       []models.PendingEdit `json:"queue"`
	Indexes     []int                `json:"indexes"`
	PreviewRows int                  `json:"preview_rows"`
	Bounds      CursorBounds         `json:"-"`
}

// NewState starts a session over ds with the cursor at zero and an empty queue
func NewState(ds *models.Dataset, previewRows int, bounds CursorBounds) State {
	return State{
		Dataset:     ds,
		Queue:       []models.PendingEdit{},
		Indexes:     []int{},
		PreviewRows: max(previewRows, 0),
		Bounds:      bounds,
	}
}

// Current returns the record under the cursor
func (s State) Current() (models.Record, bool) {
	return s.Dataset.At(s.Cursor)
}

// Queued reports whether index already has a pending edit
func (s State) Queued(index int) bool {
	return slices.Contains(s.Indexes, index)
}

// Event is one user interaction
type Event interface {
	apply(State) State
}

// Apply returns the state that results from ev
func Apply(s State, ev Event) State {
	if ev == nil {
		return s
	}
	return ev.apply(s)
}

// AdvanceCursor moves the cursor one record
type AdvanceCursor struct {
	Direction models.Direction
}

func (e AdvanceCursor) apply(s State) State {
	n := s.Dataset.Len()
	switch e.Direction {
	case models.DirectionNext:
		limit := n - 1
		if s.Bounds == BoundsLegacy {
			limit = n + 1
		}
		if s.Cursor < limit {
			s.Cursor++
		}
	case models.DirectionPrev:
		if s.Cursor > 0 {
			s.Cursor--
		}
	}
	return s
}

// QueueEdit appends a pending edit unless its index is already queued
type QueueEdit struct {
	Edit models.PendingEdit
}

func (e QueueEdit) apply(s State) State {
	if s.Queued(e.Edit.Index) {
		return s
	}
	s.Queue = append(slices.Clip(s.Queue), e.Edit)
	s.Indexes = append(slices.Clip(s.Indexes), e.Edit.Index)
	return s
}

// ClearQueue drops every pending edit
type ClearQueue struct{}

func (ClearQueue) apply(s State) State {
	s.Queue = []models.PendingEdit{}
	s.Indexes = []int{}
	return s
}

// ResizePreview grows or shrinks the preview row count, never below zero
type ResizePreview struct {
	Delta int
}

func (e ResizePreview) apply(s State) State {
	s.PreviewRows = max(s.PreviewRows+e.Delta, 0)
	return s
}

// ReplaceDataset swaps in a derived dataset and pulls the cursor back inside it
type ReplaceDataset struct {
	Dataset *models.Dataset
}

func (e ReplaceDataset) apply(s State) State {
	s.Dataset = e.Dataset
	if s.Bounds == BoundsClamped {
		s.Cursor = min(s.Cursor, max(s.Dataset.Len()-1, 0))
	}
	return s
}
