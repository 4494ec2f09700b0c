package model

import (
	"context"
	"time"
)

type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// Source tells where an agent line came from.
type Source string

const (
	SourceScript        Source = "script"
	SourceKnowledgeBase Source = "knowledge_base"
	SourceGenerated     Source = "generated"
	SourceSystem        Source = "system"
)

// TranscriptEntry is one line of the call, tagged with the step active when it was spoken.
type TranscriptEntry struct {
	Role      Role      `json:"role"`
	Step      string    `json:"step"`
	Content   string    `json:"content"`
	Source    Source    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome is how a call session ended.
type Outcome string

const (
	OutcomeInProgress Outcome = "in_progress"
	OutcomeCompleted  Outcome = "completed"
	OutcomeEscalated  Outcome = "escalated"
	OutcomeFailed     Outcome = "failed"
	OutcomeAborted    Outcome = "aborted"
)

// SessionInfo identifies a call session for persistence.
type SessionInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
}

// Transcript is the finalized record of a call.
type Transcript struct {
	Session   SessionInfo       `json:"session"`
	EndedAt   time.Time         `json:"ended_at"`
	Outcome   Outcome           `json:"outcome"`
	FinalStep string            `json:"final_step"`
	TotalCost float64           `json:"total_cost_usd"`
	Entries   []TranscriptEntry `json:"entries"`
}

type TranscriptRepository interface {
	// AppendEntry durably appends one entry as soon as it is produced.
	AppendEntry(ctx context.Context, session SessionInfo, entry TranscriptEntry) error

	// SaveTranscript writes the finalized transcript once the call ends.
	SaveTranscript(ctx context.Context, transcript *Transcript) error
}
