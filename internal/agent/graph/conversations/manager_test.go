package conversations

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
)

type recordingRepo struct {
	entries []model.TranscriptEntry
	saved   *model.Transcript
	err     error
}

func (r *recordingRepo) AppendEntry(_ context.Context, _ model.SessionInfo, e model.TranscriptEntry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingRepo) SaveTranscript(_ context.Context, t *model.Transcript) error {
	if r.err != nil {
		return r.err
	}
	r.saved = t
	return nil
}

func TestHistoryFromTranscript(t *testing.T) {
	mm := NewMessagesManager(nil, model.ConversationConfig{MaxTurns: 3})
	entries := []model.TranscriptEntry{
		{Role: model.RoleAgent, Step: "step_1", Content: "Is that correct?"},
		{Role: model.RoleUser, Step: "step_1", Content: "who are you?"},
		{Role: model.RoleAgent, Step: "step_1", Content: "I am Bella."},
		{Role: model.RoleUser, Step: "step_1", Content: ""},
		{Role: model.RoleUser, Step: "step_1", Content: "ok"},
	}
	got := mm.HistoryFromTranscript(entries)
	if len(got) != 2 {
		t.Fatalf("history len = %d, want 2", len(got))
	}
	if got[0].Role != schema.Assistant || got[0].Content != "I am Bella." {
		t.Fatalf("history[0] = %+v", got[0])
	}
	if got[1].Role != schema.User || got[1].Content != "ok" {
		t.Fatalf("history[1] = %+v", got[1])
	}
}

func TestBuildResponseContext(t *testing.T) {
	mm := NewMessagesManager(nil, model.ConversationConfig{})
	history := []*schema.Message{schema.AssistantMessage("Is that correct?", nil), nil}
	msgs := mm.BuildResponseContext("persona", history, "how much is it?")
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Role != schema.System || msgs[2].Role != schema.User || msgs[2].Content != "how much is it?" {
		t.Fatalf("unexpected context: %+v", msgs)
	}
}

func TestAppendAndFinalize(t *testing.T) {
	repo := &recordingRepo{}
	mm := NewMessagesManager(repo, model.ConversationConfig{})
	session := model.SessionInfo{ID: "s1", Name: "chat_1"}
	if err := mm.Append(context.Background(), session, model.TranscriptEntry{Role: model.RoleAgent, Content: "hi"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mm.Finalize(context.Background(), &model.Transcript{Session: session}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(repo.entries) != 1 || repo.saved == nil {
		t.Fatalf("repo = %+v", repo)
	}

	repo.err = errors.New("disk full")
	if err := mm.Append(context.Background(), session, model.TranscriptEntry{}); !errors.Is(err, errx.ErrTranscript) {
		t.Fatalf("Append error = %v, want ErrTranscript", err)
	}
}
