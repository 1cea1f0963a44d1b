package models

import (
	"fmt"
	"strings"
)

// Action is what a pending edit does to its record
type Action string

const (
	ActionDrop    Action = "drop"
	ActionRelabel Action = "relabel"
)

// ParseAction accepts "drop", "relabel" and "keep" (an alias of relabel).
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drop":
		return ActionDrop, nil
	case "relabel", "keep":
		return ActionRelabel, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// PendingEdit is a queued change keyed by record index
type PendingEdit struct {
	Index     int    `json:"index"`
	Action    Action `json:"action"`
	Sentiment string `json:"sentiment,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

// Direction moves the cursor
type Direction string

const (
	DirectionNext Direction = "next"
	DirectionPrev Direction = "prev"
)

// ParseDirection accepts "next" and "prev"
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next":
		return DirectionNext, nil
	case "prev", "previous":
		return DirectionPrev, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}
