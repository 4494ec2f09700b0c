package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-voice-agent/server/internal/agent/model"
)

//go:embed template/response_prompt.txt
var coreSystemPrompt string

// PersonaVars are the call specific values of the response persona.
type PersonaVars struct {
	RevenuePartner string
	UserName       string
	// KnownFacts are low confidence knowledge base answers the model may draw on.
	KnownFacts []string
}

// RenderResponseSystem renders the persona system prompt and triggers prompt callbacks.
func RenderResponseSystem(ctx context.Context, config model.ResponsePromptConfig, vars PersonaVars) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(coreSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"AgentName":      config.AgentName,
		"CompanyName":    config.CompanyName,
		"CallPurpose":    config.CallPurpose,
		"HandoffParty":   config.HandoffParty,
		"RevenuePartner": vars.RevenuePartner,
		"UserName":       vars.UserName,
		"KnownFacts":     vars.KnownFacts,
	})
	if err != nil {
		return "", fmt.Errorf("response prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("response prompt render: empty result")
	}
	return msgs[0].Content, nil
}
