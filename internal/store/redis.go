// internal/store/redis.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"community-scout/internal/common/config"
	"community-scout/internal/models"
)

const entityKeyPrefix = "entity:"

// RedisStore persists discovered entities as one hash per entity key.
// Re-discovering an entity overwrites its hash fields, which makes Upsert
// naturally idempotent.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisStore{client: rdb}, nil
}

// NewRedisStoreWithClient wraps an existing client (used by tests).
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Upsert(ctx context.Context, entity models.MergedEntity) error {
	key := entityKeyPrefix + EntityKey(entity)

	fields := map[string]interface{}{
		"name":        entity.Name,
		"handle":      entity.Handle,
		"category":    entity.Category,
		"subcategory": entity.Subcategory,
		"followers":   entity.Followers,
		"logo":        entity.Logo,
		"source_url":  entity.SourceURL,
		"phrase":      entity.Phrase,
		"strategy":    entity.Strategy,
		"channel":     string(entity.Channel),
		"updated_at":  time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("entity upsert failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
