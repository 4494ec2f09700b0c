package prompts

import (
	_ "embed"
	"strings"
)

//go:embed template/extract_prompt.txt
var extractPrompt string

// ExtractQAPrompt is the instruction sent along with the FAQ document.
func ExtractQAPrompt() string {
	return strings.TrimSpace(extractPrompt)
}
