package repo

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
)

var testSession = model.SessionInfo{ID: "0192f0c4-aaaa-7bbb-8ccc-000000000001", Name: "chat_20260101120000"}

func sampleEntries() []model.TranscriptEntry {
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return []model.TranscriptEntry{
		{Role: model.RoleAgent, Step: "step_1", Content: "Is your name Dana?", Source: model.SourceScript, Timestamp: ts},
		{Role: model.RoleUser, Step: "step_1", Content: "yes", Timestamp: ts.Add(time.Second)},
		{Role: model.RoleAgent, Step: "step_2", Content: "Is your email dana@example.com?", Source: model.SourceScript, Timestamp: ts.Add(2 * time.Second)},
	}
}

func TestFSTranscriptRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r := NewFSTranscriptRepository(dir)

	entries := sampleEntries()
	for _, e := range entries {
		if err := r.AppendEntry(ctx, testSession, e); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}

	partial, err := r.LoadPartial(testSession.Name)
	if err != nil {
		t.Fatalf("LoadPartial: %v", err)
	}
	if len(partial) != len(entries) || partial[1].Content != "yes" {
		t.Fatalf("journal = %+v", partial)
	}

	err = r.SaveTranscript(ctx, &model.Transcript{Session: testSession, Outcome: model.OutcomeCompleted, Entries: entries})
	if err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "chat_20260101120000.json"))
	if err != nil {
		t.Fatalf("final transcript missing: %v", err)
	}
	var got []model.TranscriptEntry
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 || got[0].Step != "step_1" || got[2].Step != "step_2" {
		t.Fatalf("final transcript = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "chat_20260101120000.partial.jsonl")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("journal not removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "chat_20260101120000.json.tmp")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFSTranscriptRepositoryRejectsBadName(t *testing.T) {
	r := NewFSTranscriptRepository(t.TempDir())
	err := r.AppendEntry(context.Background(), model.SessionInfo{Name: "../escape"}, sampleEntries()[0])
	if err == nil {
		t.Fatal("expected error for path-like session name")
	}
}

func TestFSKnowledgeCache(t *testing.T) {
	ctx := context.Background()
	c := NewFSKnowledgeCache(t.TempDir())

	if _, ok, err := c.Load(ctx, "faq", time.Hour); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	snap := &model.KnowledgeSnapshot{
		Key:        "faq",
		Source:     "docs/faq.pdf",
		CreatedAt:  time.Now().UTC(),
		Pairs:      []model.QAPair{{Question: "Who are you?", Answer: "Bella."}},
		Embeddings: [][]float32{{0.1, 0.2, 0.3}},
	}
	if err := c.Save(ctx, snap, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := c.Load(ctx, "faq", time.Hour)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if len(got.Pairs) != 1 || got.Pairs[0].Answer != "Bella." || len(got.Embeddings[0]) != 3 {
		t.Fatalf("snapshot = %+v", got)
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok, err := c.Load(ctx, "faq", time.Hour); err != nil || ok {
		t.Fatalf("stale cache should miss: ok=%v err=%v", ok, err)
	}
}

func TestRedisTranscriptRepository(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	r := NewRedisTranscriptRepository(rdb, 24*time.Hour)

	for _, e := range sampleEntries() {
		if err := r.AppendEntry(ctx, testSession, e); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}
	key := "call:" + testSession.ID + ":transcript"
	if rdb.ttls[key] != 24*time.Hour {
		t.Fatalf("ttl = %v", rdb.ttls[key])
	}

	entries, err := r.LoadEntries(ctx, testSession.ID)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 3 || entries[0].Role != model.RoleAgent || entries[1].Content != "yes" {
		t.Fatalf("entries = %+v", entries)
	}

	if _, err := r.LoadTranscript(ctx, testSession.ID); !errors.Is(err, errx.ErrNotFound) {
		t.Fatalf("expected not found before save, got %v", err)
	}
	if err := r.SaveTranscript(ctx, &model.Transcript{Session: testSession, Outcome: model.OutcomeEscalated, Entries: entries}); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	final, err := r.LoadTranscript(ctx, testSession.ID)
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if final.Outcome != model.OutcomeEscalated || len(final.Entries) != 3 {
		t.Fatalf("final = %+v", final)
	}

	if err := r.Clear(ctx, testSession.ID); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, _ = r.LoadEntries(ctx, testSession.ID)
	if len(entries) != 0 {
		t.Fatalf("entries after clear = %d", len(entries))
	}
}

func TestRedisTranscriptRepositoryError(t *testing.T) {
	rdb := newMemRedis()
	rdb.failAll = errors.New("connection refused")
	r := NewRedisTranscriptRepository(rdb, time.Hour)

	err := r.AppendEntry(context.Background(), testSession, sampleEntries()[0])
	if !errors.Is(err, errx.ErrExternalService) || !errx.IsRetryable(err) {
		t.Fatalf("err = %v, want retryable external error", err)
	}
}

func TestRedisKnowledgeCache(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	c := NewRedisKnowledgeCache(rdb)

	if _, ok, err := c.Load(ctx, "faq", time.Hour); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	snap := &model.KnowledgeSnapshot{
		Key:        "faq",
		Source:     "faq.pdf",
		CreatedAt:  time.Now().UTC(),
		Pairs:      []model.QAPair{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}},
		Embeddings: [][]float32{{1, 0}, {0, 1}},
	}
	if err := c.Save(ctx, snap, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rdb.ttls["knowledge:faq:qa"] != time.Hour || rdb.ttls["knowledge:faq:embeddings"] != time.Hour {
		t.Fatalf("ttls = %v", rdb.ttls)
	}

	got, ok, err := c.Load(ctx, "faq", time.Hour)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if len(got.Pairs) != 2 || got.Pairs[1].Answer != "a2" || got.Embeddings[1][1] != 1 {
		t.Fatalf("snapshot = %+v", got)
	}
}

type failingRepo struct{ err error }

func (f failingRepo) AppendEntry(context.Context, model.SessionInfo, model.TranscriptEntry) error {
	return f.err
}

func (f failingRepo) SaveTranscript(context.Context, *model.Transcript) error { return f.err }

func TestFanoutContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	fsRepo := NewFSTranscriptRepository(t.TempDir())
	f := Fanout{failingRepo{err: boom}, fsRepo}

	err := f.AppendEntry(ctx, testSession, sampleEntries()[0])
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want joined failure", err)
	}
	entries, err := fsRepo.LoadPartial(testSession.Name)
	if err != nil || len(entries) != 1 {
		t.Fatalf("second repository not written: %v %d", err, len(entries))
	}
}
