package parsers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// basic safety limits to avoid pathological model output
const (
	maxContentLen = 512 * 1024 // 512KB
	maxPairs      = 1000       // maximum number of pairs kept
	maxFieldLen   = 8 * 1024   // 8KB per question or answer
	maxErrSnippet = 200        // limit error snippet size
)

var (
	jsonFence = regexp.MustCompile("(?s)```json(.*?)```")
	anyFence  = regexp.MustCompile("(?s)```(.*?)```")
)

// extractJSON returns the JSON payload of a model answer: the first ```json
// fence, else the first plain fence, else the trimmed content.
func extractJSON(content string) string {
	if m := jsonFence.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := anyFence.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

// ParseQAPairs parses the extraction model output into question/answer pairs,
// preserving document order. Pairs with an empty or oversized question or answer
// are skipped; invalid JSON is an error.
func ParseQAPairs(content string) (pairs []model.QAPair, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "qa_parser").Msgf("panic recovered: %v", r)
			pairs, err = nil, fmt.Errorf("qa parser panic: %v", r)
		}
	}()

	if len(content) > maxContentLen {
		return nil, fmt.Errorf("qa content too large: %d bytes", len(content))
	}
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("qa content is not valid utf8")
	}

	payload := extractJSON(content)
	var raw []model.QAPair
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("invalid qa json %q: %w", safeSnippet(payload), err)
	}

	pairs = make([]model.QAPair, 0, len(raw))
	skipped := 0
	for _, p := range raw {
		if len(pairs) >= maxPairs {
			logx.Warn().
				Str("component", "qa_parser").
				Int("max_pairs", maxPairs).
				Msg("qa pairs capped")
			break
		}
		q := strings.TrimSpace(p.Question)
		a := strings.TrimSpace(p.Answer)
		if q == "" || a == "" || len(q) > maxFieldLen || len(a) > maxFieldLen {
			skipped++
			continue
		}
		pairs = append(pairs, model.QAPair{Question: q, Answer: a})
	}
	if skipped > 0 {
		logx.Warn().
			Str("component", "qa_parser").
			Int("skipped", skipped).
			Msg("skipped invalid qa pairs")
	}
	return pairs, nil
}

func safeSnippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet] + "..."
}
