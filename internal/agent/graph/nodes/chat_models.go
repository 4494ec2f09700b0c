package nodes

import (
	"context"
	"fmt"

	logx "github.com/Chative-voice-agent/server/pkg/logger"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/Chative-voice-agent/server/internal/agent/model"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Client           *genai.Client
	ClassifierConfig *model.ClassifierModelConfig
	RespConfig       *model.ResponseModelConfig
}

// ChatModels holds both the intent classification and the response chat models
type ChatModels struct {
	Classifier          *gemini.ChatModel
	Response            *gemini.ChatModel
	ClassifierModelName string
	ResponseModelName   string
}

// NewGenAIClient creates the shared Gemini client used by chat models, extraction and embeddings.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates both chat models on top of a shared Gemini client
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Client == nil || config.ClassifierConfig == nil || config.RespConfig == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	// Classification must answer with a single token, so thinking stays off.
	chatModelClassifier, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.Client,
		Model:       config.ClassifierConfig.Model,
		Temperature: &config.ClassifierConfig.Temperature,
		MaxTokens:   &config.ClassifierConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      config.Client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(config.RespConfig.ThinkingBudget),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Response model")
		return nil, fmt.Errorf("error creating Response model: %w", err)
	}

	return &ChatModels{
		Classifier:          chatModelClassifier,
		Response:            chatModelResponse,
		ClassifierModelName: config.ClassifierConfig.Model,
		ResponseModelName:   config.RespConfig.Model,
	}, nil
}
