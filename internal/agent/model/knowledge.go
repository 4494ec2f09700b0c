package model

import (
	"context"
	"time"
)

// QAPair is a question/answer pair extracted from the FAQ document.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QAEntry is a pair together with the embedding of its question.
type QAEntry struct {
	QAPair
	Embedding []float32
}

// Match is the best retrieved entry for a query.
type Match struct {
	Index    int
	Question string
	Answer   string
	Score    float64
}

// KnowledgeSnapshot is the cached form of a knowledge base: pairs and
// embeddings in matching order.
type KnowledgeSnapshot struct {
	Key        string      `json:"key"`
	Source     string      `json:"source"`
	CreatedAt  time.Time   `json:"created_at"`
	Pairs      []QAPair    `json:"pairs"`
	Embeddings [][]float32 `json:"embeddings"`
}

type KnowledgeCache interface {
	// Load returns the snapshot stored under key when it is younger than maxAge.
	// ok is false when the snapshot is missing or stale.
	Load(ctx context.Context, key string, maxAge time.Duration) (snap *KnowledgeSnapshot, ok bool, err error)

	// Save stores the snapshot under its key for ttl.
	Save(ctx context.Context, snap *KnowledgeSnapshot, ttl time.Duration) error
}
