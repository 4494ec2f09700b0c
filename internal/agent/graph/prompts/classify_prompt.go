package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/classify_prompt.txt
var classifySystemPrompt string

// RenderClassifyMessages builds the classifier input: the strict label
// instruction as system message and the caller utterance as user message.
// Rendering goes through the Eino prompt component so prompt callbacks fire.
func RenderClassifyMessages(ctx context.Context, utterance string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
		schema.MessagesPlaceholder("user_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(strings.TrimSpace(classifySystemPrompt))},
		"user_messages":   []*schema.Message{schema.UserMessage(utterance)},
	})
	if err != nil {
		return nil, fmt.Errorf("classify prompt render: %w", err)
	}
	if len(msgs) != 2 {
		return nil, fmt.Errorf("classify prompt render: got %d messages", len(msgs))
	}
	return msgs, nil
}
