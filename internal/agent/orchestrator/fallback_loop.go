package orchestrator

import (
	"context"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
)

// fallbackState is the inner state of the off-script loop.
type fallbackState int

const (
	// answering runs the fallback graph: retrieval, then a canned or generated answer.
	stateAnswering fallbackState = iota
	stateClarifying
	stateAwaiting
)

func (s fallbackState) String() string {
	switch s {
	case stateAnswering:
		return "answering"
	case stateClarifying:
		return "clarifying"
	case stateAwaiting:
		return "awaiting"
	}
	return "unknown"
}

// runFallback answers off-script questions while staying anchored to the
// step that opened the loop. It returns nil once the caller answers
// affirmatively, and errx.ErrMaxFallbackRetries after MaxFallbackTurns
// agent turns without that.
func (o *Orchestrator) runFallback(ctx context.Context, s *Session, anchor *model.Step, query string) error {
	log := o.log.With().Str("step", anchor.ID).Logger()
	state := stateAnswering
	turns := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debug().Str("state", state.String()).Int("turns", turns).Msg("Fallback loop")

		switch state {
		case stateAnswering, stateClarifying:
			if turns >= o.cfg.MaxFallbackTurns {
				return errx.MaxFallbackRetries(anchor.ID, turns)
			}
			turns++
			if state == stateClarifying {
				o.emit(ctx, s, anchor.ID, o.cfg.ClarifyPrompt, model.SourceScript)
			} else {
				o.answer(ctx, s, anchor.ID, query)
			}
			state = stateAwaiting

		case stateAwaiting:
			utterance, intent, err := o.solicit(ctx, s, anchor.ID, "")
			if err != nil {
				return err
			}
			switch intent {
			case model.IntentAffirmative:
				log.Info().Int("turns", turns).Msg("Fallback loop resolved")
				return nil
			case model.IntentNegative:
				state = stateClarifying
			case model.IntentOther:
				query = utterance
				state = stateAnswering
			}
		}
	}
}

// answer speaks the fallback graph answer to query, or an apology when the
// graph keeps failing.
func (o *Orchestrator) answer(ctx context.Context, s *Session, stepID, query string) {
	in := model.FallbackInput{
		SessionID: s.ID(),
		StepID:    stepID,
		Query:     query,
		History:   o.deps.Messages.HistoryFromTranscript(s.historyBefore()),
	}
	ans, err := callWithRetry(ctx, "fallback answer", o.policy(), func(ctx context.Context) (*model.Answer, error) {
		return o.deps.Fallback.Answer(ctx, in)
	})
	if err != nil {
		if ctx.Err() == nil {
			o.log.Warn().Err(err).Str("step", stepID).Msg("Fallback answer failed - apologizing")
			o.emit(ctx, s, stepID, o.cfg.ApologyMessage, model.SourceSystem)
		}
		return
	}
	s.addCost(ans.CostUSD)
	o.log.Info().
		Str("step", stepID).
		Str("source", string(ans.Source)).
		Float64("similarity", ans.Score).
		Msg("Off-script answer")
	o.emit(ctx, s, stepID, ans.Text, ans.Source)
}
