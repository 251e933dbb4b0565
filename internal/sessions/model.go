package sessions

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"promptscan-backend/internal/matcher"
)

// MaxPrompts caps the prompts of a manual session.
const MaxPrompts = 10

// Lanes keep manual and batch runs independent.
const (
	LaneManual = "manual"
	LaneBatch  = "batch"
)

type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemError      ItemStatus = "error"
)

// Terminal reports whether no further transition is allowed.
func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemError
}

type SessionStatus string

const (
	SessionIdle      SessionStatus = "idle"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionError     SessionStatus = "error"
)

// PromptItem tracks one prompt through pending, processing and a terminal state.
// Fields are changed only through Start, Complete and Fail.
type PromptItem struct {
	ID        string                 `json:"id"`
	Prompt    string                 `json:"prompt"`
	Keywords  []string               `json:"keywords,omitempty"`
	Response  string                 `json:"response"`
	Matches   []matcher.KeywordMatch `json:"matches"`
	CreatedAt time.Time              `json:"createdAt"`
	Status    ItemStatus             `json:"status"`
	Error     string                 `json:"error,omitempty"`
}

func newItem(prompt string, keywords []string, now time.Time) PromptItem {
	return PromptItem{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Keywords:  keywords,
		Matches:   []matcher.KeywordMatch{},
		CreatedAt: now,
		Status:    ItemPending,
	}
}

// Start moves a pending item to processing.
func (it *PromptItem) Start() error {
	if it.Status != ItemPending {
		return fmt.Errorf("%w: %s->%s", ErrInvalidTransition, it.Status, ItemProcessing)
	}
	it.Status = ItemProcessing
	return nil
}

// Complete records a provider response and its matches.
func (it *PromptItem) Complete(response string, matches []matcher.KeywordMatch) error {
	if it.Status != ItemProcessing {
		return fmt.Errorf("%w: %s->%s", ErrInvalidTransition, it.Status, ItemCompleted)
	}
	if response == "" {
		return fmt.Errorf("%w: completed item needs a response", ErrInvalidTransition)
	}
	if matches == nil {
		matches = []matcher.KeywordMatch{}
	}
	it.Status = ItemCompleted
	it.Response = response
	it.Matches = matches
	it.Error = ""
	return nil
}

// Fail records a failure message. Terminal items cannot fail.
func (it *PromptItem) Fail(message string) error {
	if it.Status.Terminal() {
		return fmt.Errorf("%w: %s->%s", ErrInvalidTransition, it.Status, ItemError)
	}
	if message == "" {
		message = "unknown error"
	}
	it.Status = ItemError
	it.Error = message
	it.Response = ""
	it.Matches = []matcher.KeywordMatch{}
	return nil
}

// Clone returns a copy that shares no slices with it.
func (it PromptItem) Clone() PromptItem {
	out := it
	out.Keywords = append([]string(nil), it.Keywords...)
	out.Matches = make([]matcher.KeywordMatch, len(it.Matches))
	for i, m := range it.Matches {
		m.Positions = append([]int(nil), m.Positions...)
		out.Matches[i] = m
	}
	return out
}

// Session is one run over a fixed set of prompts or batch rows.
type Session struct {
	ID        string        `json:"id"`
	Lane      string        `json:"lane"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Prompts   []string      `json:"prompts"`
	Keywords  []string      `json:"keywords"`
	Items     []PromptItem  `json:"items"`
	Status    SessionStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// Clone deep-copies the session.
func (s Session) Clone() Session {
	out := s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Prompts = append([]string{}, s.Prompts...)
	out.Keywords = append([]string{}, s.Keywords...)
	out.Items = make([]PromptItem, len(s.Items))
	for i, it := range s.Items {
		out.Items[i] = it.Clone()
	}
	return out
}

// Finished reports whether the session reached completed or error.
func (s Session) Finished() bool {
	return s.Status == SessionCompleted || s.Status == SessionError
}
