package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-voice-agent/server/internal/agent/graph/conversations"
	"github.com/Chative-voice-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// KnowledgeRetriever answers a query with the best matching FAQ entry.
type KnowledgeRetriever interface {
	Query(ctx context.Context, text string) (model.Match, error)
}

// NewRetrieverNode creates the Retriever node. Retrieval never fails the graph:
// an empty knowledge base or a lookup error routes the query to generation.
func NewRetrieverNode(retriever KnowledgeRetriever) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.FallbackInput) (*model.Retrieval, error) {
		out := &model.Retrieval{Input: in}
		if retriever == nil {
			return out, nil
		}
		match, err := retriever.Query(ctx, in.Query)
		switch {
		case err == nil:
			out.Match = match
			out.Found = true
		case errors.Is(err, errx.ErrEmptyKnowledgeBase):
			logx.Debug().Str("session_id", in.SessionID).Msg("Knowledge base empty - generating answer")
		default:
			logx.Warn().Err(err).Str("session_id", in.SessionID).Msg("Knowledge lookup failed - generating answer")
		}
		return out, nil
	})
}

// NewAnswerCondition routes to the canned answer when the similarity is strictly
// above the acceptance threshold, otherwise to the response model.
func NewAnswerCondition(threshold float64) func(context.Context, *model.Retrieval) (string, error) {
	return func(ctx context.Context, r *model.Retrieval) (string, error) {
		if r.Found && r.Match.Score > threshold {
			logx.Debug().
				Str("session_id", r.Input.SessionID).
				Float64("similarity", r.Match.Score).
				Float64("threshold", threshold).
				Msg("Routing to canned answer")
			return NodeCannedAnswer, nil
		}
		logx.Debug().
			Str("session_id", r.Input.SessionID).
			Bool("found", r.Found).
			Float64("similarity", r.Match.Score).
			Float64("threshold", threshold).
			Msg("Routing to response model")
		return NodeResponseAssembler, nil
	}
}

// NewCannedAnswerNode returns the retrieved FAQ answer verbatim.
func NewCannedAnswerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, r *model.Retrieval) (*schema.Message, error) {
		msg := schema.AssistantMessage(r.Match.Answer, nil)
		msg.Extra = map[string]any{
			model.ExtraAnswerSource: string(model.SourceKnowledgeBase),
			model.ExtraSimilarity:   r.Match.Score,
		}
		return msg, nil
	})
}

// NewResponseAssemblerNode builds the response model context: persona system
// prompt, recent history and the caller query.
func NewResponseAssemblerNode(
	mm *conversations.MessagesManager,
	promptConfig *model.ResponsePromptConfig,
	persona prompts.PersonaVars,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, r *model.Retrieval) ([]*schema.Message, error) {
		vars := persona
		if r.Found && r.Match.Answer != "" {
			vars.KnownFacts = append([]string{}, persona.KnownFacts...)
			vars.KnownFacts = append(vars.KnownFacts, fmt.Sprintf("Q: %s A: %s", r.Match.Question, r.Match.Answer))
		}
		systemPrompt, err := prompts.RenderResponseSystem(ctx, *promptConfig, vars)
		if err != nil {
			return nil, fmt.Errorf("generate response prompt: %w", err)
		}
		return mm.BuildResponseContext(systemPrompt, r.Input.History, r.Input.Query), nil
	})
}

// NewGeneratedAnswerNode tags the response model output and computes its usage cost.
func NewGeneratedAnswerNode(modelName string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *schema.Message) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("response model returned no message")
		}
		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra[model.ExtraAnswerSource] = string(model.SourceGenerated)

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, model.ResolvePricing(modelName))
			out.Extra[model.ExtraUsageCost] = totalC
			logx.Debug().
				Str("node", NodeResponseChatModel).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")
		}
		return out, nil
	})
}
