package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/Chative-voice-agent/server/internal/agent/model"
)

// Session is the state of one call. It is owned by the Orchestrator and only
// mutated through its methods; callers get read accessors.
type Session struct {
	info      model.SessionInfo
	step      string
	halted    bool
	outcome   model.Outcome
	entries   []model.TranscriptEntry
	costUSD   float64
	endedAt   time.Time
	finalized bool
}

func newSession(now time.Time, start string) *Session {
	return &Session{
		info: model.SessionInfo{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Name:      "chat_" + now.Format("20060102150405"),
			StartedAt: now,
		},
		step:    start,
		outcome: model.OutcomeInProgress,
	}
}

func (s *Session) Info() model.SessionInfo { return s.info }
func (s *Session) ID() string              { return s.info.ID }
func (s *Session) CurrentStep() string     { return s.step }
func (s *Session) Halted() bool            { return s.halted }
func (s *Session) Outcome() model.Outcome  { return s.outcome }
func (s *Session) CostUSD() float64        { return s.costUSD }

// Entries returns a copy of the transcript so far, in chronological order.
func (s *Session) Entries() []model.TranscriptEntry {
	out := make([]model.TranscriptEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Transcript snapshots the session as a finalized transcript.
func (s *Session) Transcript() *model.Transcript {
	return &model.Transcript{
		Session:   s.info,
		EndedAt:   s.endedAt,
		Outcome:   s.outcome,
		FinalStep: s.step,
		TotalCost: s.costUSD,
		Entries:   s.Entries(),
	}
}

func (s *Session) halt(outcome model.Outcome, at time.Time) {
	if s.halted {
		return
	}
	s.halted = true
	s.outcome = outcome
	s.endedAt = at
}

func (s *Session) addCost(usd float64) {
	if usd > 0 {
		s.costUSD += usd
	}
}

// historyBefore returns the entries preceding the most recent user utterance.
func (s *Session) historyBefore() []model.TranscriptEntry {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Role == model.RoleUser {
			return s.entries[:i]
		}
	}
	return s.entries
}
