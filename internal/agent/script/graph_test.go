package script

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
)

var testBindings = map[string]string{
	"Revenue Partner": "Lifemart",
	"User Name":       "Camila",
	"User Email":      "camila@gmail.com",
	"User Phone":      "1 914 365 138",
}

func TestDefaultScript(t *testing.T) {
	g, err := Default(testBindings)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if g.Start() != "step_1" {
		t.Fatalf("start = %q, want step_1", g.Start())
	}
	if g.Escalation() != "needs_human" {
		t.Fatalf("escalation = %q, want needs_human", g.Escalation())
	}

	step, err := g.GetStep("step_2")
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if !strings.Contains(step.Prompt, "camila@gmail.com") || !strings.Contains(step.Prompt, "1 914 365 138") {
		t.Fatalf("placeholders not resolved: %q", step.Prompt)
	}
	if strings.Contains(step.Prompt, "[") {
		t.Fatalf("prompt still has a placeholder: %q", step.Prompt)
	}

	tests := []struct {
		step   string
		intent model.Intent
		want   string
	}{
		{"step_1", model.IntentAffirmative, "step_2"},
		{"step_1", model.IntentNegative, "not_interested"},
		{"step_1", model.IntentOther, "step_1"},
		{"step_2", model.IntentAffirmative, "step_3"},
		{"step_2", model.IntentNegative, "update_information"},
		{"step_2", model.IntentOther, "step_2"},
	}
	for _, tc := range tests {
		got, err := g.NextStep(tc.step, tc.intent)
		if err != nil {
			t.Fatalf("NextStep(%s, %s): %v", tc.step, tc.intent, err)
		}
		if got != tc.want {
			t.Fatalf("NextStep(%s, %s) = %q, want %q", tc.step, tc.intent, got, tc.want)
		}
	}

	kinds := map[string]model.StepKind{
		"step_3":             model.StepTerminal,
		"not_interested":     model.StepListenAndTerminal,
		"update_information": model.StepTerminal,
	}
	for id, want := range kinds {
		step, err := g.GetStep(id)
		if err != nil {
			t.Fatalf("GetStep(%s): %v", id, err)
		}
		if step.Kind != want {
			t.Fatalf("%s kind = %s, want %s", id, step.Kind, want)
		}
	}
}

func TestGetStepUnknown(t *testing.T) {
	g, err := Default(testBindings)
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if _, err := g.GetStep("step_42"); !errors.Is(err, errx.ErrUnknownStep) {
		t.Fatalf("GetStep unknown = %v, want ErrUnknownStep", err)
	}
	if _, err := g.NextStep("step_42", model.IntentAffirmative); !errors.Is(err, errx.ErrUnknownStep) {
		t.Fatalf("NextStep unknown step = %v, want ErrUnknownStep", err)
	}
	if _, err := g.NextStep("step_3", model.IntentAffirmative); !errors.Is(err, errx.ErrUnknownIntent) {
		t.Fatalf("NextStep on terminal = %v, want ErrUnknownIntent", err)
	}
}

func TestParseNullTransitionHalts(t *testing.T) {
	doc := `
start: ask
steps:
  - id: ask
    kind: question
    prompt: Ready?
    transitions:
      affirmative: done
      negative: ~
      other: ask
  - id: done
    kind: terminal
    prompt: Bye.
`
	g, err := Parse([]byte(doc), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	next, err := g.NextStep("ask", model.IntentNegative)
	if err != nil {
		t.Fatalf("NextStep: %v", err)
	}
	if next != "" {
		t.Fatalf("null transition = %q, want empty", next)
	}
}

func TestParseRejectsInvalidScripts(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "undefined transition target",
			doc: `
start: ask
steps:
  - id: ask
    kind: question
    prompt: Ready?
    transitions: {affirmative: nowhere, negative: ask, other: ask}
`,
		},
		{
			name: "question missing a label",
			doc: `
start: ask
steps:
  - id: ask
    kind: question
    prompt: Ready?
    transitions: {affirmative: ask, negative: ask}
`,
		},
		{
			name: "missing start",
			doc: `
steps:
  - id: ask
    kind: terminal
    prompt: Bye.
`,
		},
		{
			name: "undefined start",
			doc: `
start: hello
steps:
  - id: ask
    kind: terminal
    prompt: Bye.
`,
		},
		{
			name: "duplicate step",
			doc: `
start: ask
steps:
  - id: ask
    kind: terminal
  - id: ask
    kind: terminal
`,
		},
		{
			name: "unknown kind",
			doc: `
start: ask
steps:
  - id: ask
    kind: transfer
`,
		},
		{
			name: "unknown label",
			doc: `
start: ask
steps:
  - id: ask
    kind: question
    transitions: {affirmative: ask, negative: ask, other: ask, maybe: ask}
`,
		},
		{
			name: "terminal with transition",
			doc: `
start: ask
steps:
  - id: ask
    kind: terminal
    transitions: {affirmative: ask}
`,
		},
		{
			name: "escalation not terminal",
			doc: `
start: ask
escalation: ask
steps:
  - id: ask
    kind: question
    transitions: {affirmative: ask, negative: ask, other: ask}
`,
		},
		{
			name: "unresolved placeholder",
			doc: `
start: ask
steps:
  - id: ask
    kind: terminal
    prompt: Hi [Nickname]
`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), testBindings)
			if !errors.Is(err, errx.ErrInvalidScript) {
				t.Fatalf("Parse error = %v, want ErrInvalidScript", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, defaultScript, 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	g, err := Load(path, testBindings)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(g.StepIDs()); got != 6 {
		t.Fatalf("steps = %d, want 6", got)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), testBindings); err == nil {
		t.Fatal("Load of a missing file should fail")
	}
}
