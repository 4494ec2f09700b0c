// Package script holds the declarative call script: steps, their prompts and
// the intent driven transitions between them.
package script

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
)

// Graph is an immutable, validated call script.
type Graph struct {
	start      string
	escalation string
	order      []string
	steps      map[string]*model.Step
}

type fileStep struct {
	ID          string             `yaml:"id"`
	Kind        string             `yaml:"kind"`
	Prompt      string             `yaml:"prompt"`
	Transitions map[string]*string `yaml:"transitions"`
}

type file struct {
	Start      string     `yaml:"start"`
	Escalation string     `yaml:"escalation"`
	Steps      []fileStep `yaml:"steps"`
}

// Load reads and parses a script file.
func Load(path string, bindings map[string]string) (*Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	return Parse(b, bindings)
}

// Parse builds a Graph from a YAML document, resolving prompt placeholders once.
func Parse(doc []byte, bindings map[string]string) (*Graph, error) {
	var f file
	if err := yaml.Unmarshal(doc, &f); err != nil {
		return nil, errx.New(errx.KindInvalidScript, "parse script", err, "invalid yaml")
	}

	g := &Graph{
		start:      f.Start,
		escalation: f.Escalation,
		steps:      make(map[string]*model.Step, len(f.Steps)),
	}
	for _, fs := range f.Steps {
		if fs.ID == "" {
			return nil, errx.InvalidScript("step without id")
		}
		if _, dup := g.steps[fs.ID]; dup {
			return nil, errx.InvalidScript("duplicate step %q", fs.ID)
		}
		kind, err := model.ParseStepKind(fs.Kind)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", fs.ID, err)
		}
		prompt, err := ResolvePlaceholders(fs.Prompt, bindings)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", fs.ID, err)
		}
		transitions := make(map[model.Intent]string, len(fs.Transitions))
		for label, target := range fs.Transitions {
			intent, err := model.ParseIntent(label)
			if err != nil {
				return nil, errx.InvalidScript("step %q: transition label %q is not an intent", fs.ID, label)
			}
			if _, dup := transitions[intent]; dup {
				return nil, errx.InvalidScript("step %q: duplicate transition for %q", fs.ID, intent)
			}
			next := ""
			if target != nil {
				next = *target
			}
			transitions[intent] = next
		}
		g.steps[fs.ID] = &model.Step{ID: fs.ID, Prompt: prompt, Kind: kind, Transitions: transitions}
		g.order = append(g.order, fs.ID)
	}

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) validate() error {
	if len(g.steps) == 0 {
		return errx.InvalidScript("script has no steps")
	}
	if g.start == "" {
		return errx.InvalidScript("script has no start step")
	}
	if _, ok := g.steps[g.start]; !ok {
		return errx.InvalidScript("start step %q is not defined", g.start)
	}
	if g.escalation != "" {
		esc, ok := g.steps[g.escalation]
		if !ok {
			return errx.InvalidScript("escalation step %q is not defined", g.escalation)
		}
		if esc.Kind != model.StepTerminal {
			return errx.InvalidScript("escalation step %q must be terminal, got %s", g.escalation, esc.Kind)
		}
	}
	for _, id := range g.order {
		step := g.steps[id]
		for intent, next := range step.Transitions {
			if next == "" {
				continue
			}
			if _, ok := g.steps[next]; !ok {
				return errx.InvalidScript("step %q: transition %q targets undefined step %q", id, intent, next)
			}
			if step.Kind != model.StepQuestion {
				return errx.InvalidScript("step %q: %s steps cannot transition", id, step.Kind)
			}
		}
		if step.Kind != model.StepQuestion {
			continue
		}
		for _, intent := range model.Intents {
			if _, ok := step.Transitions[intent]; !ok {
				return errx.InvalidScript("question step %q has no transition for %q", id, intent)
			}
		}
	}
	return nil
}

// Start returns the id of the first step.
func (g *Graph) Start() string { return g.start }

// Escalation returns the id of the terminal step used when the call cannot
// continue, or "" when the script declares none.
func (g *Graph) Escalation() string { return g.escalation }

// StepIDs returns step ids in declaration order.
func (g *Graph) StepIDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// GetStep returns the step with the given id.
func (g *Graph) GetStep(id string) (*model.Step, error) {
	step, ok := g.steps[id]
	if !ok {
		return nil, errx.UnknownStep(id)
	}
	return step, nil
}

// NextStep resolves the transition of stepID for intent. An empty id means the
// call halts.
func (g *Graph) NextStep(stepID string, intent model.Intent) (string, error) {
	step, err := g.GetStep(stepID)
	if err != nil {
		return "", err
	}
	next, ok := step.Transitions[intent]
	if !ok {
		return "", errx.UnknownIntent(stepID, intent.String())
	}
	return next, nil
}
