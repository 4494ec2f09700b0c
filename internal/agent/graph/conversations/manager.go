package conversations

import (
	"context"
	"strings"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"

	"github.com/cloudwego/eino/schema"
)

// MessagesManager persists transcript entries and turns the transcript into
// model context for the response model.
type MessagesManager struct {
	transcriptRepo model.TranscriptRepository
	maxTurns       int
}

func NewMessagesManager(transcriptRepo model.TranscriptRepository, config model.ConversationConfig) *MessagesManager {
	maxTurns := config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &MessagesManager{
		transcriptRepo: transcriptRepo,
		maxTurns:       maxTurns,
	}
}

// =========== Persistence ===========

// Append eagerly persists one entry. Failures are logged and returned, the
// caller decides whether to continue.
func (cm *MessagesManager) Append(ctx context.Context, session model.SessionInfo, entry model.TranscriptEntry) error {
	if cm.transcriptRepo == nil {
		return nil
	}
	if err := cm.transcriptRepo.AppendEntry(ctx, session, entry); err != nil {
		logx.Error().
			Err(err).
			Str("session_id", session.ID).
			Str("step", entry.Step).
			Msg("failed to append transcript entry")
		return errx.Transcript("append entry", err)
	}
	return nil
}

// Finalize writes the complete transcript once the call ended.
func (cm *MessagesManager) Finalize(ctx context.Context, transcript *model.Transcript) error {
	if cm.transcriptRepo == nil {
		return nil
	}
	if err := cm.transcriptRepo.SaveTranscript(ctx, transcript); err != nil {
		logx.Error().
			Err(err).
			Str("session_id", transcript.Session.ID).
			Msg("failed to save transcript")
		return errx.Transcript("save transcript", err)
	}
	return nil
}

// =========== Function for the response model ===========

// HistoryFromTranscript converts the most recent transcript entries into chat messages.
func (cm *MessagesManager) HistoryFromTranscript(entries []model.TranscriptEntry) []*schema.Message {
	recent := trimTail(entries, cm.maxTurns)
	messages := make([]*schema.Message, 0, len(recent))
	for _, e := range recent {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		switch e.Role {
		case model.RoleUser:
			messages = append(messages, schema.UserMessage(e.Content))
		case model.RoleAgent:
			messages = append(messages, schema.AssistantMessage(e.Content, nil))
		}
	}
	return messages
}

// BuildResponseContext assembles system prompt, history and the caller query.
func (cm *MessagesManager) BuildResponseContext(systemPrompt string, history []*schema.Message, query string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, m := range history {
		if m != nil {
			messages = append(messages, m)
		}
	}
	messages = append(messages, schema.UserMessage(query))
	return messages
}

// ====================== Helper function ======================
func trimTail(entries []model.TranscriptEntry, maxTurns int) []model.TranscriptEntry {
	if len(entries) <= maxTurns {
		return entries
	}
	return entries[len(entries)-maxTurns:]
}
