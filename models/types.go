package models

import "time"

// Phase is the derived lifecycle state of a poll
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseFinished   Phase = "FINISHED"
)

// WebSocket message types
const (
	MessageVoteUpdated = "VOTE_UPDATED"
)

// Limits carried over from the public API contract
const (
	MinOptions        = 3
	MaxQuestionLength = 2000
	DefaultPageSize   = 20
	MaxPageSize       = 100
)

// ParsePhase converts a status query value into a Phase
func ParsePhase(s string) (Phase, bool) {
	switch p := Phase(s); p {
	case PhaseNotStarted, PhaseInProgress, PhaseFinished:
		return p, true
	}
	return "", false
}

// PhaseAt evaluates the half-open interval [start, end) against now.
func PhaseAt(start, end, now time.Time) Phase {
	if now.Before(start) {
		return PhaseNotStarted
	}
	if !now.Before(end) {
		return PhaseFinished
	}
	return PhaseInProgress
}

// Request types

type CreatePollRequest struct {
	Question string     `json:"question"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
	Options  []string   `json:"options"`
}

// nil fields are left unchanged
type EditPollRequest struct {
	Question *string    `json:"question"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

type AddOptionRequest struct {
	Text string `json:"text"`
}

// Response types

type OptionResponse struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int64  `json:"votes"`
}

type PollResponse struct {
	ID       string           `json:"id"`
	Question string           `json:"question"`
	Status   Phase            `json:"status"`
	StartsAt string           `json:"startsAt"`
	EndsAt   string           `json:"endsAt"`
	Options  []OptionResponse `json:"options"`
}

type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	PageSize      int   `json:"pageSize"`
	PageLength    int   `json:"pageLength"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	HasNext       bool  `json:"hasNext"`
	HasPrevious   bool  `json:"hasPrevious"`
}

// NewPage fills in the paging metadata for a slice of content
func NewPage[T any](content []T, page, size int, total int64) PageResponse[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return PageResponse[T]{
		Content:       content,
		Page:          page,
		PageSize:      size,
		PageLength:    len(content),
		TotalPages:    totalPages,
		TotalElements: total,
		HasNext:       page+1 < totalPages,
		HasPrevious:   page > 0,
	}
}

// Domain types

type Poll struct {
	ID        string
	Question  string
	StartsAt  time.Time
	EndsAt    time.Time
	CreatedAt time.Time
	Options   []Option
}

// PhaseAt reports the poll's phase at the given instant
func (p Poll) PhaseAt(now time.Time) Phase {
	return PhaseAt(p.StartsAt, p.EndsAt, now)
}

type Option struct {
	ID       string
	PollID   string
	Text     string
	Votes    int64
	Position int
}

// PollFilter selects a page of polls, optionally restricted to a phase
type PollFilter struct {
	Phase Phase
	Now   time.Time
	Page  int
	Size  int
}

// WebSocket types

// Message is the envelope pushed to subscribers
type Message struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

type VoteUpdate struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int64  `json:"votes"`
}

// Error response

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// FormatTime renders an instant the way the API and socket messages expose it
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ToResponse converts a poll with its options into its JSON shape
func (p Poll) ToResponse(now time.Time) PollResponse {
	options := make([]OptionResponse, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, o.ToResponse())
	}
	return PollResponse{
		ID:       p.ID,
		Question: p.Question,
		Status:   p.PhaseAt(now),
		StartsAt: FormatTime(p.StartsAt),
		EndsAt:   FormatTime(p.EndsAt),
		Options:  options,
	}
}

func (o Option) ToResponse() OptionResponse {
	return OptionResponse{ID: o.ID, Text: o.Text, Votes: o.Votes}
}
