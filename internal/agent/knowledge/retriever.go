package knowledge

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// DefaultCacheTTL is how long a cached knowledge base is considered fresh.
const DefaultCacheTTL = time.Hour

// Extractor turns a FAQ document into ordered Q&A pairs.
type Extractor interface {
	Extract(ctx context.Context, doc *Document) ([]model.QAPair, error)
}

// Embedder maps texts to vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type BuildOptions struct {
	Source       string
	ForceRebuild bool
	// TTL is the cache freshness window; zero selects DefaultCacheTTL.
	TTL time.Duration
	// MaxRetries and RetryBackoff bound the retries of extraction and embedding calls.
	MaxRetries   int
	RetryBackoff time.Duration
}

// Retriever answers queries with the most similar FAQ question.
type Retriever struct {
	source   string
	entries  []model.QAEntry
	embedder Embedder
}

// NewRetriever builds a retriever over already embedded entries.
func NewRetriever(source string, entries []model.QAEntry, embedder Embedder) *Retriever {
	return &Retriever{source: source, entries: entries, embedder: embedder}
}

// Build loads the knowledge base from cache or builds it from the source
// document. An empty extraction yields an empty retriever and is not cached.
func Build(ctx context.Context, opts BuildOptions, extractor Extractor, embedder Embedder, cache model.KnowledgeCache) (*Retriever, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	key := CacheKey(opts.Source)
	log := logx.With().Str("knowledge_key", key).Str("source", opts.Source).Logger()

	if cache != nil && !opts.ForceRebuild {
		snap, ok, err := cache.Load(ctx, key, opts.TTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Knowledge cache load failed - rebuilding")
		case ok && len(snap.Pairs) > 0 && len(snap.Pairs) == len(snap.Embeddings):
			log.Info().Int("pairs", len(snap.Pairs)).Msg("Loaded knowledge base from cache")
			return NewRetriever(opts.Source, snapshotEntries(snap), embedder), nil
		case ok:
			log.Warn().Msg("Cached knowledge base is inconsistent - rebuilding")
		}
	}

	doc, err := LoadDocument(ctx, opts.Source)
	if err != nil {
		return nil, err
	}
	pairs, err := withBackoff(ctx, "extract knowledge", opts, func(ctx context.Context) ([]model.QAPair, error) {
		return extractor.Extract(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		log.Warn().Msg("No Q&A pairs extracted - knowledge base is empty")
		return NewRetriever(opts.Source, nil, embedder), nil
	}

	questions := make([]string, len(pairs))
	for i, p := range pairs {
		questions[i] = p.Question
	}
	vectors, err := withBackoff(ctx, "embed knowledge", opts, func(ctx context.Context) ([][]float32, error) {
		return embedder.Embed(ctx, questions)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pairs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d questions", len(vectors), len(pairs))
	}

	snap := &model.KnowledgeSnapshot{
		Key:        key,
		Source:     opts.Source,
		CreatedAt:  time.Now().UTC(),
		Pairs:      pairs,
		Embeddings: vectors,
	}
	if cache != nil {
		if err := cache.Save(ctx, snap, opts.TTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache knowledge base")
		}
	}
	log.Info().Int("pairs", len(pairs)).Msg("Built knowledge base")
	return NewRetriever(opts.Source, snapshotEntries(snap), embedder), nil
}

// Len returns the number of entries.
func (r *Retriever) Len() int { return len(r.entries) }

// Query returns the entry whose question is most similar to text. Ties keep
// the first entry in extraction order.
func (r *Retriever) Query(ctx context.Context, text string) (model.Match, error) {
	if len(r.entries) == 0 {
		return model.Match{}, errx.EmptyKnowledgeBase(r.source)
	}
	vectors, err := r.embedder.Embed(ctx, []string{text})
	if err != nil {
		return model.Match{}, errx.External("embed query", err)
	}
	if len(vectors) != 1 {
		return model.Match{}, errx.External("embed query", fmt.Errorf("got %d vectors", len(vectors)))
	}

	best := -1
	bestScore := math.Inf(-1)
	for i, e := range r.entries {
		score := CosineSimilarity(vectors[0], e.Embedding)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		best, bestScore = 0, 0
	}
	e := r.entries[best]
	return model.Match{Index: best, Question: e.Question, Answer: e.Answer, Score: bestScore}, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, 0 when
// either is a zero vector or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var keyUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)

// CacheKey derives the cache key from the document base name without extension.
func CacheKey(source string) string {
	name := documentName(strings.TrimSpace(source))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	key := strings.Trim(keyUnsafe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if key == "" {
		return "knowledge"
	}
	return key
}

func snapshotEntries(snap *model.KnowledgeSnapshot) []model.QAEntry {
	entries := make([]model.QAEntry, len(snap.Pairs))
	for i, p := range snap.Pairs {
		entries[i] = model.QAEntry{QAPair: p, Embedding: snap.Embeddings[i]}
	}
	return entries
}
