package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Chative-voice-agent/server/internal/agent/classifier"
	"github.com/Chative-voice-agent/server/internal/agent/graph"
	"github.com/Chative-voice-agent/server/internal/agent/graph/conversations"
	"github.com/Chative-voice-agent/server/internal/agent/graph/nodes"
	"github.com/Chative-voice-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-voice-agent/server/internal/agent/knowledge"
	"github.com/Chative-voice-agent/server/internal/agent/model"
	"github.com/Chative-voice-agent/server/internal/agent/orchestrator"
	"github.com/Chative-voice-agent/server/internal/agent/repo"
	"github.com/Chative-voice-agent/server/internal/agent/script"
	"github.com/Chative-voice-agent/server/internal/core"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
	pkgredis "github.com/Chative-voice-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the call agent,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Classifier   model.ClassifierModelConfig
	Response     model.ResponseModelConfig
	Prompt       model.ResponsePromptConfig
	Conversation model.ConversationConfig
	Knowledge    model.KnowledgeConfig
	Call         model.CallConfig
	Voice        model.VoiceConfig
	Storage      model.StorageConfig
}

func main() {
	// Load .env file
	envErr := godotenv.Load(".env")

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: envCfg.Environment, Level: envCfg.LogLevel})
	if envErr != nil {
		logx.Warn().Err(envErr).Msg("Could not load .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, envCfg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			logx.Info().Msg("Call aborted")
			return
		}
		logx.Fatal().Err(err).Msg("Call failed")
	}
}

func run(ctx context.Context, envCfg AppConfig) error {
	bindings := envCfg.Call.Bindings()

	// ====================================================
	// Script
	var (
		callScript *script.Graph
		err        error
	)
	if envCfg.Call.ScriptFile != "" {
		callScript, err = script.Load(envCfg.Call.ScriptFile, bindings)
	} else {
		callScript, err = script.Default(bindings)
	}
	if err != nil {
		return err
	}

	// ====================================================
	// Persistence
	transcripts := repo.Fanout{repo.NewFSTranscriptRepository(envCfg.Storage.HistoryDir)}
	var knowledgeCache model.KnowledgeCache = repo.NewFSKnowledgeCache(envCfg.Knowledge.CacheDir)

	if envCfg.Redis.Enabled() {
		rdb, err := envCfg.Redis.New(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logx.Info().Msg("Connected to Redis successfully")

		if envCfg.Storage.RedisTranscripts {
			ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
			if err != nil {
				logx.Error().Err(err).Str("value", envCfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
				return err
			}
			transcripts = append(transcripts, repo.NewRedisTranscriptRepository(rdb, ttl))
		}
		if envCfg.Knowledge.CacheBackend == "redis" {
			knowledgeCache = repo.NewRedisKnowledgeCache(rdb)
		}
	} else if envCfg.Knowledge.CacheBackend == "redis" || envCfg.Storage.RedisTranscripts {
		logx.Warn().Msg("REDIS_URL not set - using filesystem storage only")
	}

	// ====================================================
	// Models
	client, err := nodes.NewGenAIClient(ctx, envCfg.APIKey, envCfg.BaseURL)
	if err != nil {
		return err
	}
	chatModels, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		Client:           client,
		ClassifierConfig: &envCfg.Classifier,
		RespConfig:       &envCfg.Response,
	})
	if err != nil {
		return err
	}

	// ====================================================
	// Knowledge base
	embedder := knowledge.NewGeminiEmbedder(client, envCfg.Knowledge.EmbeddingModel)
	retriever, err := knowledge.Build(ctx,
		knowledge.BuildOptions{
			Source:       envCfg.Knowledge.Source,
			ForceRebuild: envCfg.Knowledge.ForceRebuild,
			TTL:          envCfg.Knowledge.CacheTTL,
			MaxRetries:   envCfg.Call.MaxRetries,
			RetryBackoff: envCfg.Call.RetryBackoff,
		},
		knowledge.NewGeminiExtractor(client, envCfg.Knowledge.ExtractionModel),
		embedder,
		knowledgeCache,
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logx.Warn().Err(err).Str("source", envCfg.Knowledge.Source).
			Msg("Knowledge base unavailable - continuing with generated answers only")
		retriever = knowledge.NewRetriever(envCfg.Knowledge.Source, nil, embedder)
	}

	// ====================================================
	// Fallback graph
	messages := conversations.NewMessagesManager(transcripts, envCfg.Conversation)
	fallback, err := graph.BuildFallbackGraph(ctx, &graph.Config{
		ResponseModel:     chatModels.Response,
		ResponseModelName: chatModels.ResponseModelName,
		Retriever:         retriever,
		MessagesManager:   messages,
		ResponsePrompt:    &envCfg.Prompt,
		Persona: prompts.PersonaVars{
			RevenuePartner: envCfg.Call.RevenuePartner,
			UserName:       envCfg.Call.UserName,
		},
		MinSimilarity: envCfg.Knowledge.MinSimilarity,
	})
	if err != nil {
		return err
	}

	// ====================================================
	// Voice
	speaker, err := newSpeaker(envCfg.Voice)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Script:     callScript,
		Listener:   voiceListener(),
		Speaker:    speaker,
		Classifier: classifier.New(chatModels.Classifier, chatModels.ClassifierModelName),
		Fallback:   fallback,
		Messages:   messages,
	}, envCfg.Call)
	if err != nil {
		return err
	}

	session, err := orch.Run(ctx)
	if session != nil {
		logx.Info().
			Str("session_id", session.ID()).
			Str("outcome", string(session.Outcome())).
			Float64("total_cost_usd", session.CostUSD()).
			Msg("Session finished")
	}
	return err
}
