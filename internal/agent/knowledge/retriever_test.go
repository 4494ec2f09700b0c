package knowledge

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	"github.com/Chative-voice-agent/server/internal/agent/repo"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
)

// stubExtractor fails with the queued errors first, then returns pairs.
type stubExtractor struct {
	pairs    []model.QAPair
	failures []error
	calls    int
}

func (s *stubExtractor) Extract(context.Context, *Document) ([]model.QAPair, error) {
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return nil, err
	}
	return s.pairs, nil
}

// keywordEmbedder maps texts to fixed vectors; unknown texts map to the zero vector.
type keywordEmbedder struct {
	vectors  map[string][]float32
	failures []error
	calls    int
}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	k.calls++
	if len(k.failures) > 0 {
		err := k.failures[0]
		k.failures = k.failures[1:]
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := k.vectors[t]
		if !ok {
			v = []float32{0, 0, 0}
		}
		out[i] = v
	}
	return out, nil
}

func writeFAQ(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "Domu FAQ.txt")
	if err := os.WriteFile(p, []byte("Q: Who are you?\nA: Bella from Domu."), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func testEmbedder() *keywordEmbedder {
	return &keywordEmbedder{vectors: map[string][]float32{
		"Who are you?":          {1, 0, 0},
		"What do you sell?":     {0, 1, 0},
		"who is calling":        {0.9, 0.1, 0},
		"what are the products": {0.2, 0.9, 0},
	}}
}

func TestBuildAndQuery(t *testing.T) {
	ctx := context.Background()
	extractor := &stubExtractor{pairs: []model.QAPair{
		{Question: "Who are you?", Answer: "Bella from Domu."},
		{Question: "What do you sell?", Answer: "Insurance plans."},
	}}
	cache := repo.NewFSKnowledgeCache(t.TempDir())

	r, err := Build(ctx, BuildOptions{Source: writeFAQ(t)}, extractor, testEmbedder(), cache)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d", r.Len())
	}

	m, err := r.Query(ctx, "who is calling")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if m.Index != 0 || m.Answer != "Bella from Domu." {
		t.Fatalf("match = %+v", m)
	}
	if m.Score <= 0.75 || m.Score > 1 {
		t.Fatalf("score = %v", m.Score)
	}

	m, err = r.Query(ctx, "what are the products")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if m.Index != 1 {
		t.Fatalf("match = %+v", m)
	}
}

func TestBuildUsesCache(t *testing.T) {
	ctx := context.Background()
	source := writeFAQ(t)
	extractor := &stubExtractor{pairs: []model.QAPair{{Question: "Who are you?", Answer: "Bella from Domu."}}}
	cache := repo.NewFSKnowledgeCache(t.TempDir())

	first, err := Build(ctx, BuildOptions{Source: source}, extractor, testEmbedder(), cache)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	second, err := Build(ctx, BuildOptions{Source: source}, extractor, testEmbedder(), cache)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if extractor.calls != 1 {
		t.Fatalf("extractor called %d times, want 1", extractor.calls)
	}
	if first.Len() != second.Len() || second.entries[0].Answer != "Bella from Domu." {
		t.Fatalf("cached retriever differs: %+v", second.entries)
	}

	if _, err := Build(ctx, BuildOptions{Source: source, ForceRebuild: true}, extractor, testEmbedder(), cache); err != nil {
		t.Fatalf("forced Build: %v", err)
	}
	if extractor.calls != 2 {
		t.Fatalf("force rebuild did not extract again")
	}
}

func TestBuildEmptyExtractionNotCached(t *testing.T) {
	ctx := context.Background()
	source := writeFAQ(t)
	extractor := &stubExtractor{}
	cache := repo.NewFSKnowledgeCache(t.TempDir())

	r, err := Build(ctx, BuildOptions{Source: source}, extractor, testEmbedder(), cache)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := r.Query(ctx, "anything"); !errors.Is(err, errx.ErrEmptyKnowledgeBase) {
		t.Fatalf("err = %v, want empty knowledge base", err)
	}
	if _, ok, _ := cache.Load(ctx, CacheKey(source), DefaultCacheTTL); ok {
		t.Fatal("empty extraction was cached")
	}
}

func TestQueryTieKeepsFirst(t *testing.T) {
	emb := &keywordEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	r := NewRetriever("faq", []model.QAEntry{
		{QAPair: model.QAPair{Question: "a", Answer: "first"}, Embedding: []float32{1, 0}},
		{QAPair: model.QAPair{Question: "b", Answer: "second"}, Embedding: []float32{2, 0}},
	}, emb)

	m, err := r.Query(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if m.Index != 0 || m.Answer != "first" {
		t.Fatalf("tie resolved to %+v", m)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{[]float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCacheKey(t *testing.T) {
	tests := map[string]string{
		"docs/Domu FAQ.pdf":                   "domu_faq",
		"https://example.com/files/faq.pdf?x": "faq",
		"faq":                                 "faq",
		"":                                    "knowledge",
	}
	for in, want := range tests {
		if got := CacheKey(in); got != want {
			t.Errorf("CacheKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadDocument(t *testing.T) {
	doc, err := LoadDocument(context.Background(), writeFAQ(t))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "Domu FAQ.txt" || doc.MIMEType != "text/plain" || len(doc.Data) == 0 {
		t.Fatalf("doc = %+v", doc)
	}
	if _, err := LoadDocument(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestBuildRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	extractor := &stubExtractor{
		pairs:    []model.QAPair{{Question: "Who are you?", Answer: "Bella from Domu."}},
		failures: []error{errx.External("extract", errors.New("503 unavailable"))},
	}
	embedder := testEmbedder()
	embedder.failures = []error{errors.New("connection reset")}
	opts := BuildOptions{Source: writeFAQ(t), MaxRetries: 2, RetryBackoff: time.Millisecond}

	r, err := Build(ctx, opts, extractor, embedder, repo.NewFSKnowledgeCache(t.TempDir()))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if extractor.calls != 2 {
		t.Fatalf("extractor calls = %d, want 2", extractor.calls)
	}
	if embedder.calls != 2 {
		t.Fatalf("embedder calls = %d, want 2", embedder.calls)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d", r.Len())
	}
}

func TestBuildGivesUpAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	unavailable := errx.External("extract", errors.New("503 unavailable"))
	extractor := &stubExtractor{failures: []error{unavailable, unavailable, unavailable, unavailable}}
	opts := BuildOptions{Source: writeFAQ(t), MaxRetries: 2, RetryBackoff: time.Millisecond}

	r, err := Build(ctx, opts, extractor, testEmbedder(), repo.NewFSKnowledgeCache(t.TempDir()))
	if err == nil || r != nil {
		t.Fatalf("Build = %v, %v; want error", r, err)
	}
	if !errors.Is(err, errx.ErrExternalService) {
		t.Fatalf("error kind = %v", errx.KindOf(err))
	}
	if extractor.calls != 3 {
		t.Fatalf("extractor calls = %d, want 3", extractor.calls)
	}
}

func TestBuildDoesNotRetryCanceledCalls(t *testing.T) {
	ctx := context.Background()
	extractor := &stubExtractor{failures: []error{context.Canceled}}
	opts := BuildOptions{Source: writeFAQ(t), MaxRetries: 2, RetryBackoff: time.Millisecond}

	if _, err := Build(ctx, opts, extractor, testEmbedder(), repo.NewFSKnowledgeCache(t.TempDir())); err == nil {
		t.Fatal("expected error")
	}
	if extractor.calls != 1 {
		t.Fatalf("extractor calls = %d, want 1", extractor.calls)
	}
}
