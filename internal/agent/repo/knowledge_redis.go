package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Chative-voice-agent/server/internal/agent/model"
	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// RedisKnowledgeCache stores knowledge snapshots under two keys, the Q&A
// pairs and their embeddings, both expiring after the cache TTL.
type RedisKnowledgeCache struct {
	rdb RedisClient
}

func NewRedisKnowledgeCache(rdb RedisClient) *RedisKnowledgeCache {
	return &RedisKnowledgeCache{rdb: rdb}
}

type redisQADoc struct {
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"created_at"`
	Pairs     []model.QAPair `json:"pairs"`
}

func qaKey(key string) string         { return fmt.Sprintf("knowledge:%s:qa", key) }
func embeddingsKey(key string) string { return fmt.Sprintf("knowledge:%s:embeddings", key) }

// Load relies on key expiry for freshness; maxAge additionally rejects
// snapshots written with a longer TTL.
func (c *RedisKnowledgeCache) Load(ctx context.Context, key string, maxAge time.Duration) (*model.KnowledgeSnapshot, bool, error) {
	qaRaw, err := c.rdb.Get(ctx, qaKey(key)).Result()
	if err != nil {
		if err = errx.WrapRedis("load knowledge", err); errors.Is(err, errx.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	embRaw, err := c.rdb.Get(ctx, embeddingsKey(key)).Result()
	if err != nil {
		if err = errx.WrapRedis("load embeddings", err); errors.Is(err, errx.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var doc redisQADoc
	if err := json.Unmarshal([]byte(qaRaw), &doc); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached pairs: %w", err)
	}
	var embeddings [][]float32
	if err := json.Unmarshal([]byte(embRaw), &embeddings); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached embeddings: %w", err)
	}
	if maxAge > 0 && time.Since(doc.CreatedAt) > maxAge {
		return nil, false, nil
	}
	return &model.KnowledgeSnapshot{
		Key:        key,
		Source:     doc.Source,
		CreatedAt:  doc.CreatedAt,
		Pairs:      doc.Pairs,
		Embeddings: embeddings,
	}, true, nil
}

func (c *RedisKnowledgeCache) Save(ctx context.Context, snap *model.KnowledgeSnapshot, ttl time.Duration) error {
	qa, err := json.Marshal(redisQADoc{Source: snap.Source, CreatedAt: snap.CreatedAt, Pairs: snap.Pairs})
	if err != nil {
		return fmt.Errorf("marshal pairs: %w", err)
	}
	emb, err := json.Marshal(snap.Embeddings)
	if err != nil {
		return fmt.Errorf("marshal embeddings: %w", err)
	}
	if err := c.rdb.Set(ctx, qaKey(snap.Key), qa, ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", snap.Key).Msg("failed to cache knowledge pairs")
		return errx.WrapRedis("save knowledge", err)
	}
	if err := c.rdb.Set(ctx, embeddingsKey(snap.Key), emb, ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", snap.Key).Msg("failed to cache knowledge embeddings")
		return errx.WrapRedis("save embeddings", err)
	}
	return nil
}

var _ model.KnowledgeCache = (*RedisKnowledgeCache)(nil)
