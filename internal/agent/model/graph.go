package model

import (
	"github.com/cloudwego/eino/schema"
)

// FallbackInput is the input of the off-script answer graph.
type FallbackInput struct {
	SessionID string
	StepID    string
	Query     string
	// History holds the recent conversation before Query, oldest first.
	History []*schema.Message
}

// Retrieval carries the knowledge lookup result between fallback graph nodes.
type Retrieval struct {
	Input FallbackInput
	Match Match
	Found bool
}

// Answer is the result of the off-script answer graph.
type Answer struct {
	Text    string
	Source  Source
	Score   float64
	CostUSD float64
}

// Extra keys set on answer messages by the fallback graph.
const (
	ExtraAnswerSource = "answer_source"
	ExtraSimilarity   = "similarity"
	ExtraUsageCost    = "usage_cost_total_usd"
)
