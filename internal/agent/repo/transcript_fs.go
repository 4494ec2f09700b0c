package repo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// FSTranscriptRepository writes transcripts under a history directory. Entries
// are journaled to <name>.partial.jsonl while the call runs; the final
// <name>.json holds the ordered entry list and replaces the journal.
type FSTranscriptRepository struct {
	dir string
}

func NewFSTranscriptRepository(dir string) *FSTranscriptRepository {
	return &FSTranscriptRepository{dir: dir}
}

func (r *FSTranscriptRepository) partialPath(name string) string {
	return filepath.Join(r.dir, name+".partial.jsonl")
}

// FinalPath is where the finalized transcript of the named session is written.
func (r *FSTranscriptRepository) FinalPath(name string) string {
	return filepath.Join(r.dir, name+".json")
}

func (r *FSTranscriptRepository) AppendEntry(_ context.Context, session model.SessionInfo, entry model.TranscriptEntry) error {
	name, err := sessionName(session)
	if err != nil {
		return err
	}
	return appendJSONLine(r.partialPath(name), entry)
}

func (r *FSTranscriptRepository) SaveTranscript(_ context.Context, transcript *model.Transcript) error {
	name, err := sessionName(transcript.Session)
	if err != nil {
		return err
	}
	entries := transcript.Entries
	if entries == nil {
		entries = []model.TranscriptEntry{}
	}
	if err := writeJSONAtomic(r.FinalPath(name), entries); err != nil {
		return err
	}
	if err := os.Remove(r.partialPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warn().Err(err).Str("session", name).Msg("failed to remove transcript journal")
	}
	logx.Info().
		Str("session_id", transcript.Session.ID).
		Str("path", r.FinalPath(name)).
		Str("outcome", string(transcript.Outcome)).
		Int("entries", len(entries)).
		Float64("total_cost_usd", transcript.TotalCost).
		Msg("Transcript saved")
	return nil
}

// LoadPartial reads the journal of a session that has not been finalized.
func (r *FSTranscriptRepository) LoadPartial(name string) ([]model.TranscriptEntry, error) {
	f, err := os.Open(r.partialPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.TranscriptEntry{}, nil
		}
		return nil, fmt.Errorf("open transcript journal: %w", err)
	}
	defer f.Close()

	var entries []model.TranscriptEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var e model.TranscriptEntry
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("transcript journal line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read transcript journal: %w", err)
	}
	return entries, nil
}

func sessionName(session model.SessionInfo) (string, error) {
	name := strings.TrimSpace(session.Name)
	if name == "" {
		name = strings.TrimSpace(session.ID)
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid session name %q", session.Name)
	}
	return name, nil
}

var _ model.TranscriptRepository = (*FSTranscriptRepository)(nil)
