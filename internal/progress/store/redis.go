package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dials/internal/progress/models"
	"dials/pkg/platform/sentinel"
)

const defaultRedisPrefix = "dials:progress:"

// RedisStore keeps one hash per user: field = user key, value = entry JSON.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type redisEntry struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewRedis creates a Redis-backed store. An empty prefix selects the default.
func NewRedis(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Upsert(ctx context.Context, p *models.Progress) error {
	raw, err := json.Marshal(redisEntry{Data: p.Data, UpdatedAt: p.UpdatedAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(p.UserID), p.UserKey, raw).Err(); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID, userKey string) (*models.Progress, error) {
	raw, err := s.client.HGet(ctx, s.key(userID), userKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return decodeEntry(userID, userKey, raw)
}

func (s *RedisStore) Latest(ctx context.Context, userID string) (*models.Progress, error) {
	all, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("latest progress: %w", err)
	}
	var latest *models.Progress
	for userKey, raw := range all {
		p, err := decodeEntry(userID, userKey, []byte(raw))
		if err != nil {
			continue
		}
		if latest == nil || newer(*p, *latest) {
			latest = p
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID, userKey string) error {
	if err := s.client.HDel(ctx, s.key(userID), userKey).Err(); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func decodeEntry(userID, userKey string, raw []byte) (*models.Progress, error) {
	var e redisEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &models.Progress{
		UserID:    userID,
		UserKey:   userKey,
		Data:      e.Data,
		UpdatedAt: e.UpdatedAt.UTC(),
	}, nil
}
