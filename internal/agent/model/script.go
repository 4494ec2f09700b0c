package model

import (
	"fmt"
	"strings"

	errx "github.com/Chative-voice-agent/server/internal/core/error"
)

// Intent is the closed label set produced by the classifier.
type Intent string

const (
	IntentAffirmative Intent = "affirmative"
	IntentNegative    Intent = "negative"
	IntentOther       Intent = "other"
)

// Intents lists every label the classifier can emit, in a stable order.
var Intents = []Intent{IntentAffirmative, IntentNegative, IntentOther}

func (i Intent) String() string { return string(i) }

// Valid reports whether i belongs to the closed label set.
func (i Intent) Valid() bool {
	switch i {
	case IntentAffirmative, IntentNegative, IntentOther:
		return true
	}
	return false
}

var intentTrim = strings.NewReplacer("`", "", "'", "", "\"", "", ".", "", "!", "", "*", "")

// ParseIntent normalises raw classifier output into an Intent. The classifier
// prompt asks for yes/no/other, so those tokens are accepted alongside the
// canonical names. Anything else fails with a classification error.
func ParseIntent(raw string) (Intent, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSpace(intentTrim.Replace(s))
	if f := strings.Fields(s); len(f) == 1 {
		s = f[0]
	}
	switch s {
	case "yes", "affirmative":
		return IntentAffirmative, nil
	case "no", "negative":
		return IntentNegative, nil
	case "other":
		return IntentOther, nil
	}
	return "", errx.Classification(raw)
}

// StepKind is the closed set of step behaviours.
type StepKind int

const (
	StepQuestion StepKind = iota + 1
	StepTerminal
	StepListenAndTerminal
)

func (k StepKind) String() string {
	switch k {
	case StepQuestion:
		return "question"
	case StepTerminal:
		return "terminal"
	case StepListenAndTerminal:
		return "listen_and_terminal"
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// ParseStepKind accepts the canonical kind names plus the legacy finish aliases.
func ParseStepKind(s string) (StepKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "question":
		return StepQuestion, nil
	case "terminal", "finish":
		return StepTerminal, nil
	case "listen_and_terminal", "listen_and_finish":
		return StepListenAndTerminal, nil
	}
	return 0, errx.InvalidScript("unknown step kind %q", s)
}

// IsTerminal reports whether reaching the step ends the call.
func (k StepKind) IsTerminal() bool {
	return k == StepTerminal || k == StepListenAndTerminal
}

// Step is one scripted point of the call. Transitions map an intent to the next
// step id; an empty target means the call halts.
type Step struct {
	ID          string
	Prompt      string
	Kind        StepKind
	Transitions map[Intent]string
}

// Stays reports whether the step's transition for intent points back at itself.
// Only a question step whose other transition stays opens the off-script loop;
// an other transition to a different step advances without answering.
func (s *Step) Stays(intent Intent) bool {
	next, ok := s.Transitions[intent]
	return ok && next == s.ID
}

// Classification is a classified utterance together with the model cost it took.
type Classification struct {
	Intent  Intent
	CostUSD float64
}
