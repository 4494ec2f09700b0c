package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Chative-voice-agent/server/internal/agent/graph"
	"github.com/Chative-voice-agent/server/internal/agent/graph/conversations"
	"github.com/Chative-voice-agent/server/internal/agent/model"
	"github.com/Chative-voice-agent/server/internal/agent/script"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

const finalizeTimeout = 10 * time.Second

// IntentClassifier maps an utterance to an intent label.
type IntentClassifier interface {
	Classify(ctx context.Context, utterance string) (model.Classification, error)
}

// Deps are the collaborators of the orchestrator. Now defaults to time.Now.
type Deps struct {
	Script     *script.Graph
	Listener   model.SpeechInput
	Speaker    model.SpeechOutput
	Classifier IntentClassifier
	Fallback   graph.Runner
	Messages   *conversations.MessagesManager
	Now        func() time.Time
}

// Orchestrator drives one call through the script.
type Orchestrator struct {
	deps Deps
	cfg  model.CallConfig
	log  zerolog.Logger
}

func New(deps Deps, cfg model.CallConfig) (*Orchestrator, error) {
	switch {
	case deps.Script == nil:
		return nil, fmt.Errorf("orchestrator: script is nil")
	case deps.Listener == nil:
		return nil, fmt.Errorf("orchestrator: speech input is nil")
	case deps.Speaker == nil:
		return nil, fmt.Errorf("orchestrator: speech output is nil")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("orchestrator: classifier is nil")
	case deps.Fallback == nil:
		return nil, fmt.Errorf("orchestrator: fallback graph is nil")
	}
	if deps.Messages == nil {
		deps.Messages = conversations.NewMessagesManager(nil, model.ConversationConfig{})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.MaxFallbackTurns <= 0 {
		cfg.MaxFallbackTurns = 6
	}
	if cfg.MaxReprompts < 0 {
		cfg.MaxReprompts = 0
	}
	if strings.TrimSpace(cfg.ClarifyPrompt) == "" {
		cfg.ClarifyPrompt = "Then, what else can I help you with?"
	}
	return &Orchestrator{deps: deps, cfg: cfg, log: logx.With().Logger()}, nil
}

// Run executes the call until a terminal step, a null transition, escalation
// or cancellation. The transcript is finalized exactly once in every case.
// The returned error is nil when the call ended through the script,
// including escalation.
func (o *Orchestrator) Run(ctx context.Context) (s *Session, err error) {
	s = newSession(o.deps.Now(), o.deps.Script.Start())
	o.log = logx.With().Str("session_id", s.ID()).Logger()
	o.log.Info().Str("name", s.info.Name).Str("start", s.step).Msg("Call started")

	defer func() {
		if !s.halted {
			outcome := model.OutcomeFailed
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				outcome = model.OutcomeAborted
			}
			s.halt(outcome, o.deps.Now())
		}
		o.finalize(ctx, s)
	}()

	escalated := false
	for !s.halted {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		stepErr := o.runStep(ctx, s)
		if stepErr == nil {
			continue
		}
		if ctx.Err() != nil {
			return s, ctx.Err()
		}
		if errors.Is(stepErr, io.EOF) {
			o.log.Info().Str("step", s.step).Msg("Caller hung up")
			return s, stepErr
		}

		escalation := o.deps.Script.Escalation()
		if escalated || escalation == "" || s.step == escalation {
			o.log.Error().Err(stepErr).Str("step", s.step).Msg("Call failed")
			return s, stepErr
		}
		o.log.Warn().Err(stepErr).Str("from", s.step).Str("to", escalation).Msg("Escalating call")
		escalated = true
		s.step = escalation
	}
	return s, nil
}

// runStep handles the current step exhaustively by kind.
func (o *Orchestrator) runStep(ctx context.Context, s *Session) error {
	step, err := o.deps.Script.GetStep(s.step)
	if err != nil {
		return err
	}
	log := o.log.With().Str("step", step.ID).Str("kind", step.Kind.String()).Logger()
	log.Debug().Msg("Entering step")

	switch step.Kind {
	case model.StepTerminal:
		o.emit(ctx, s, step.ID, step.Prompt, model.SourceScript)
		s.halt(o.terminalOutcome(step.ID), o.deps.Now())
		return nil

	case model.StepListenAndTerminal:
		o.emit(ctx, s, step.ID, step.Prompt, model.SourceScript)
		utterance, err := o.listen(ctx)
		switch {
		case err == nil:
			o.record(ctx, s, model.RoleUser, step.ID, utterance, "")
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			log.Warn().Err(err).Msg("No closing utterance")
		}
		s.halt(o.terminalOutcome(step.ID), o.deps.Now())
		return nil

	case model.StepQuestion:
		o.emit(ctx, s, step.ID, step.Prompt, model.SourceScript)
		utterance, intent, err := o.solicit(ctx, s, step.ID, step.Prompt)
		if err != nil {
			return err
		}

		if intent == model.IntentOther && step.Stays(intent) {
			if err := o.runFallback(ctx, s, step, utterance); err != nil {
				return err
			}
			intent = model.IntentAffirmative
		}

		next, err := o.deps.Script.NextStep(step.ID, intent)
		if err != nil {
			return err
		}
		log.Info().Str("intent", string(intent)).Str("next", next).Msg("Step transition")
		if next == "" {
			s.halt(model.OutcomeCompleted, o.deps.Now())
			return nil
		}
		s.step = next
		return nil
	}
	return fmt.Errorf("step %q has unsupported kind %s", step.ID, step.Kind)
}

func (o *Orchestrator) terminalOutcome(stepID string) model.Outcome {
	if stepID != "" && stepID == o.deps.Script.Escalation() {
		return model.OutcomeEscalated
	}
	return model.OutcomeCompleted
}

// solicit listens and classifies one answer. Timeouts and unclassifiable
// answers re-prompt, external failures apologize and repeat the question
// (when one is given); both are bounded by MaxReprompts.
func (o *Orchestrator) solicit(ctx context.Context, s *Session, stepID, question string) (string, model.Intent, error) {
	for reprompts := 0; ; reprompts++ {
		utterance, err := o.listen(ctx)
		if err == nil {
			o.record(ctx, s, model.RoleUser, stepID, utterance, "")
			var cls model.Classification
			cls, err = o.classify(ctx, utterance)
			s.addCost(cls.CostUSD)
			if err == nil {
				o.log.Debug().Str("step", stepID).Str("intent", string(cls.Intent)).Msg("Answer classified")
				return utterance, cls.Intent, nil
			}
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}

		switch errx.KindOf(err) {
		case errx.KindClassification, errx.KindTimeout:
			if reprompts >= o.cfg.MaxReprompts {
				return "", "", err
			}
			o.log.Info().Err(err).Str("step", stepID).Int("reprompt", reprompts+1).Msg("Re-prompting caller")
			o.emit(ctx, s, stepID, o.cfg.RepromptMessage, model.SourceSystem)
		case errx.KindExternalService:
			if reprompts >= o.cfg.MaxReprompts {
				return "", "", err
			}
			o.log.Warn().Err(err).Str("step", stepID).Msg("Classifier unavailable - apologizing")
			o.emit(ctx, s, stepID, o.cfg.ApologyMessage, model.SourceSystem)
			o.emit(ctx, s, stepID, question, model.SourceScript)
		default:
			return "", "", err
		}
	}
}

func (o *Orchestrator) listen(ctx context.Context) (string, error) {
	utterance, err := callWithRetry(ctx, "listen", callPolicy{timeout: o.cfg.ListenTimeout}, o.deps.Listener.Listen)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(utterance), nil
}

func (o *Orchestrator) classify(ctx context.Context, utterance string) (model.Classification, error) {
	return callWithRetry(ctx, "classify", o.policy(), func(ctx context.Context) (model.Classification, error) {
		return o.deps.Classifier.Classify(ctx, utterance)
	})
}

func (o *Orchestrator) policy() callPolicy {
	return callPolicy{timeout: o.cfg.TurnTimeout, maxRetries: o.cfg.MaxRetries, backoff: o.cfg.RetryBackoff}
}

// emit records an agent line and speaks it. Speech failures are logged and
// the call continues.
func (o *Orchestrator) emit(ctx context.Context, s *Session, stepID, text string, source model.Source) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	o.record(ctx, s, model.RoleAgent, stepID, text, source)
	_, err := callWithRetry(ctx, "speak", callPolicy{timeout: o.cfg.TurnTimeout}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.deps.Speaker.Say(ctx, text)
	})
	if err != nil && ctx.Err() == nil {
		o.log.Warn().Err(err).Str("step", stepID).Msg("Speech output failed")
	}
}

// record appends an entry to the session and eagerly persists it.
func (o *Orchestrator) record(ctx context.Context, s *Session, role model.Role, stepID, content string, source model.Source) {
	if strings.TrimSpace(content) == "" {
		return
	}
	entry := model.TranscriptEntry{
		Role:      role,
		Step:      stepID,
		Content:   content,
		Source:    source,
		Timestamp: o.deps.Now(),
	}
	s.entries = append(s.entries, entry)
	// failures are logged by the manager and never abort the call
	_ = o.deps.Messages.Append(ctx, s.info, entry)
}

func (o *Orchestrator) finalize(ctx context.Context, s *Session) {
	if s.finalized {
		return
	}
	s.finalized = true

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	_ = o.deps.Messages.Finalize(fctx, s.Transcript())
	o.log.Info().
		Str("outcome", string(s.outcome)).
		Str("final_step", s.step).
		Int("entries", len(s.entries)).
		Float64("total_cost_usd", s.costUSD).
		Msg("Call ended")
}
