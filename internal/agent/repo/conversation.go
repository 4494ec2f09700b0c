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
	"github.com/redis/go-redis/v9"
)

// RedisTranscriptRepository keeps the call transcript in Redis: a list of
// entries appended as the call runs and a JSON snapshot once it ends.
type RedisTranscriptRepository struct {
	rdb RedisClient
	ttl time.Duration
}

func NewRedisTranscriptRepository(rdb RedisClient, ttl time.Duration) *RedisTranscriptRepository {
	return &RedisTranscriptRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisTranscriptRepository) entriesKey(sessionID string) string {
	return fmt.Sprintf("call:%s:transcript", sessionID)
}

func (r *RedisTranscriptRepository) finalKey(sessionID string) string {
	return fmt.Sprintf("call:%s:final", sessionID)
}

func (r *RedisTranscriptRepository) AppendEntry(ctx context.Context, session model.SessionInfo, entry model.TranscriptEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		logx.Error().Err(err).Str("session_id", session.ID).Msg("failed to marshal transcript entry")
		return fmt.Errorf("marshal entry: %w", err)
	}
	key := r.entriesKey(session.ID)

	// append entry
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push transcript entry to redis")
		return errx.WrapRedis("append entry", err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis("expire entries", err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on transcript key")
		}
	}
	return nil
}

func (r *RedisTranscriptRepository) SaveTranscript(ctx context.Context, transcript *model.Transcript) error {
	b, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	key := r.finalKey(transcript.Session.ID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save transcript to redis")
		return errx.WrapRedis("save transcript", err)
	}
	return nil
}

// LoadEntries returns the entries appended so far, oldest first.
func (r *RedisTranscriptRepository) LoadEntries(ctx context.Context, sessionID string) ([]model.TranscriptEntry, error) {
	key := r.entriesKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.TranscriptEntry{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis("load entries", err)
	}

	entries := make([]model.TranscriptEntry, 0, len(rows))
	for i, s := range rows {
		var e model.TranscriptEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal transcript entry")
			return nil, fmt.Errorf("unmarshal entry at index %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LoadTranscript returns the finalized transcript, errx.ErrNotFound when the
// call has not ended or the snapshot expired.
func (r *RedisTranscriptRepository) LoadTranscript(ctx context.Context, sessionID string) (*model.Transcript, error) {
	s, err := r.rdb.Get(ctx, r.finalKey(sessionID)).Result()
	if err != nil {
		return nil, errx.WrapRedis("load transcript", err)
	}
	var t model.Transcript
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	return &t, nil
}

func (r *RedisTranscriptRepository) Clear(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, r.entriesKey(sessionID), r.finalKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete transcript from redis")
		return errx.WrapRedis("clear transcript", err)
	}
	return nil
}

var _ model.TranscriptRepository = (*RedisTranscriptRepository)(nil)
