package knowledge

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Chative-voice-agent/server/internal/agent/graph/parsers"
	"github.com/Chative-voice-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-voice-agent/server/internal/agent/model"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// embedBatchSize is the Gemini limit of contents per EmbedContent request.
const embedBatchSize = 100

// GeminiExtractor extracts Q&A pairs from a document with a Gemini model.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

func NewGeminiExtractor(client *genai.Client, modelName string) *GeminiExtractor {
	return &GeminiExtractor{client: client, model: modelName}
}

func (e *GeminiExtractor) Extract(ctx context.Context, doc *Document) ([]model.QAPair, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(doc.Data, doc.MIMEType),
		genai.NewPartFromText(prompts.ExtractQAPrompt()),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("extract qa pairs: %w", err)
	}

	pairs, err := parsers.ParseQAPairs(resp.Text())
	if err != nil {
		return nil, err
	}
	if resp.UsageMetadata != nil {
		logx.Debug().
			Str("model", e.model).
			Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount).
			Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount).
			Int("pairs", len(pairs)).
			Msg("Q&A extraction usage")
	}
	return pairs, nil
}

// GeminiEmbedder embeds texts with a Gemini embedding model.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func NewGeminiEmbedder(client *genai.Client, modelName string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: modelName}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}

		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embed content: got %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}
