package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Chative-voice-agent/server/internal/agent/model"
)

// FSKnowledgeCache stores a snapshot as <dir>/<key>.json (pairs) and
// <dir>/<key>.embeddings.json. Freshness is judged by the pairs file mtime.
type FSKnowledgeCache struct {
	dir string
	now func() time.Time
}

func NewFSKnowledgeCache(dir string) *FSKnowledgeCache {
	return &FSKnowledgeCache{dir: dir, now: time.Now}
}

type fsQADoc struct {
	Key       string         `json:"key"`
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"created_at"`
	Pairs     []model.QAPair `json:"pairs"`
}

func (c *FSKnowledgeCache) pairsPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *FSKnowledgeCache) embeddingsPath(key string) string {
	return filepath.Join(c.dir, key+".embeddings.json")
}

func (c *FSKnowledgeCache) Load(_ context.Context, key string, maxAge time.Duration) (*model.KnowledgeSnapshot, bool, error) {
	info, err := os.Stat(c.pairsPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat knowledge cache: %w", err)
	}
	if maxAge > 0 && c.now().Sub(info.ModTime()) > maxAge {
		return nil, false, nil
	}

	var doc fsQADoc
	if err := readJSON(c.pairsPath(key), &doc); err != nil {
		return nil, false, err
	}
	var embeddings [][]float32
	if err := readJSON(c.embeddingsPath(key), &embeddings); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &model.KnowledgeSnapshot{
		Key:        key,
		Source:     doc.Source,
		CreatedAt:  doc.CreatedAt,
		Pairs:      doc.Pairs,
		Embeddings: embeddings,
	}, true, nil
}

// Save writes embeddings first so a fresh pairs file always has its vectors.
func (c *FSKnowledgeCache) Save(_ context.Context, snap *model.KnowledgeSnapshot, _ time.Duration) error {
	if err := writeJSONAtomic(c.embeddingsPath(snap.Key), snap.Embeddings); err != nil {
		return err
	}
	return writeJSONAtomic(c.pairsPath(snap.Key), fsQADoc{
		Key:       snap.Key,
		Source:    snap.Source,
		CreatedAt: snap.CreatedAt,
		Pairs:     snap.Pairs,
	})
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var _ model.KnowledgeCache = (*FSKnowledgeCache)(nil)
