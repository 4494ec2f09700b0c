package classifier

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/Chative-voice-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// Classifier maps a caller utterance to one of the closed intent labels.
type Classifier struct {
	chat      einomodel.BaseChatModel
	modelName string
}

func New(chat einomodel.BaseChatModel, modelName string) *Classifier {
	return &Classifier{chat: chat, modelName: modelName}
}

// Classify returns exactly one intent. Blank utterances and replies outside
// the label set fail with a classification error, model failures with an
// external service error.
func (c *Classifier) Classify(ctx context.Context, utterance string) (model.Classification, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return model.Classification{}, errx.Classification("")
	}

	msgs, err := prompts.RenderClassifyMessages(ctx, utterance)
	if err != nil {
		return model.Classification{}, err
	}

	out, err := c.chat.Generate(ctx, msgs)
	if err != nil {
		return model.Classification{}, errx.External("classify", err)
	}
	if out == nil {
		return model.Classification{}, errx.Classification("")
	}
	cost := model.MessageCost(out, c.modelName)

	intent, err := model.ParseIntent(out.Content)
	if err != nil {
		logx.Warn().Str("utterance", utterance).Str("raw", out.Content).Msg("Classifier returned an unknown label")
		return model.Classification{CostUSD: cost}, err
	}

	logx.Debug().
		Str("model", c.modelName).
		Str("intent", string(intent)).
		Float64("cost_usd", cost).
		Msg("Utterance classified")
	return model.Classification{Intent: intent, CostUSD: cost}, nil
}
