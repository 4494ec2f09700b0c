package repo

import (
	"context"
	"errors"

	"github.com/Chative-voice-agent/server/internal/agent/model"
)

// Fanout writes to every repository and joins their errors. A failing
// repository does not stop the others.
type Fanout []model.TranscriptRepository

func (f Fanout) AppendEntry(ctx context.Context, session model.SessionInfo, entry model.TranscriptEntry) error {
	var errs []error
	for _, r := range f {
		if err := r.AppendEntry(ctx, session, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) SaveTranscript(ctx context.Context, transcript *model.Transcript) error {
	var errs []error
	for _, r := range f {
		if err := r.SaveTranscript(ctx, transcript); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ model.TranscriptRepository = Fanout(nil)
