package graph

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-voice-agent/server/internal/agent/graph/conversations"
	"github.com/Chative-voice-agent/server/internal/agent/graph/nodes"
	"github.com/Chative-voice-agent/server/internal/agent/graph/observers"
	"github.com/Chative-voice-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// DefaultMinSimilarity is the acceptance threshold for canned answers.
const DefaultMinSimilarity = 0.75

// Runner answers an off-script caller query.
type Runner interface {
	Answer(ctx context.Context, in model.FallbackInput) (*model.Answer, error)
}

// Config holds everything needed to build the off-script answer graph.
type Config struct {
	ResponseModel     einomodel.BaseChatModel
	ResponseModelName string
	Retriever         nodes.KnowledgeRetriever
	MessagesManager   *conversations.MessagesManager
	ResponsePrompt    *model.ResponsePromptConfig
	Persona           prompts.PersonaVars
	// MinSimilarity is the canned answer threshold; zero selects DefaultMinSimilarity.
	MinSimilarity float64
}

// GraphBuilder handles the construction of the off-script answer graph
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[model.FallbackInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.FallbackInput, *schema.Message]
}

func (r *graphRunner) Answer(ctx context.Context, in model.FallbackInput) (*model.Answer, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, errx.External("fallback answer", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, errx.External("fallback answer", fmt.Errorf("empty answer"))
	}

	ans := &model.Answer{Text: strings.TrimSpace(out.Content), Source: model.SourceGenerated}
	if src, ok := out.Extra[model.ExtraAnswerSource].(string); ok {
		ans.Source = model.Source(src)
	}
	if score, ok := out.Extra[model.ExtraSimilarity].(float64); ok {
		ans.Score = score
	}
	if cost, ok := out.Extra[model.ExtraUsageCost].(float64); ok {
		ans.CostUSD = cost
	}
	return ans, nil
}

// BuildFallbackGraph validates the config, builds the graph and returns a Runner.
func BuildFallbackGraph(ctx context.Context, config *Config) (Runner, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ResponseModel == nil {
		return nil, fmt.Errorf("response model is not initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.ResponsePrompt == nil {
		return nil, fmt.Errorf("response prompt config is nil")
	}
	if config.MinSimilarity <= 0 {
		config.MinSimilarity = DefaultMinSimilarity
	}

	builder := &GraphBuilder{
		config: config,
		graph:  compose.NewGraph[model.FallbackInput, *schema.Message](),
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}
	logx.Debug().Float64("min_similarity", config.MinSimilarity).Msg("Fallback graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	adds := []struct {
		name string
		add  func() error
	}{
		{nodes.NodeRetriever, func() error {
			return b.graph.AddLambdaNode(nodes.NodeRetriever, nodes.NewRetrieverNode(b.config.Retriever))
		}},
		{nodes.NodeCannedAnswer, func() error {
			return b.graph.AddLambdaNode(nodes.NodeCannedAnswer, nodes.NewCannedAnswerNode())
		}},
		{nodes.NodeResponseAssembler, func() error {
			return b.graph.AddLambdaNode(nodes.NodeResponseAssembler,
				nodes.NewResponseAssemblerNode(b.config.MessagesManager, b.config.ResponsePrompt, b.config.Persona))
		}},
		{nodes.NodeResponseChatModel, func() error {
			return b.graph.AddChatModelNode(nodes.NodeResponseChatModel, b.config.ResponseModel)
		}},
		{nodes.NodeGeneratedAnswer, func() error {
			return b.graph.AddLambdaNode(nodes.NodeGeneratedAnswer, nodes.NewGeneratedAnswerNode(b.config.ResponseModelName))
		}},
	}
	for _, a := range adds {
		if err := a.add(); err != nil {
			logx.Error().Err(err).Str("node", a.name).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", a.name, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeRetriever},
		{nodes.NodeCannedAnswer, compose.END},
		{nodes.NodeResponseAssembler, nodes.NodeResponseChatModel},
		{nodes.NodeResponseChatModel, nodes.NodeGeneratedAnswer},
		{nodes.NodeGeneratedAnswer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates the canned-or-generated routing branch
func (b *GraphBuilder) addBranches() error {
	answerBranch := compose.NewGraphBranch(
		nodes.NewAnswerCondition(b.config.MinSimilarity),
		map[string]bool{
			nodes.NodeCannedAnswer:      true,
			nodes.NodeResponseAssembler: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRetriever, answerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding answer branch")
		return fmt.Errorf("error adding answer branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.FallbackInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("fallback_answer"),
		compose.WithMaxRunSteps(10),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
