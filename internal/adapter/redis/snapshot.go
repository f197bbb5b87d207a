package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Temutjin2k/geo-tracker/internal/domain/models"
)

const (
	defaultKeyPrefix = "tracker:participant:"
	defaultTTL       = time.Minute
	indexSuffix      = "index"
)

// SnapshotStore keeps the last known position of each participant in Redis so that
// every relay instance can replay it. Entries expire after ttl without updates,
// which cleans up after an instance that died without announcing departures.
type SnapshotStore struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

func NewSnapshotStore(client redis.Cmdable, prefix string, ttl time.Duration) *SnapshotStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SnapshotStore{client: client, keyPrefix: prefix, ttl: ttl}
}

func (s *SnapshotStore) key(id string) string {
	return s.keyPrefix + id
}

func (s *SnapshotStore) index() string {
	return s.keyPrefix + indexSuffix
}

// Put stores loc with a fresh TTL and records its id in the index
func (s *SnapshotStore) Put(ctx context.Context, loc models.ReceiveLocation) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(loc.ID), payload, s.ttl)
	pipe.SAdd(ctx, s.index(), loc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.SRem(ctx, s.index(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// List returns the unexpired positions ordered by id. Ids whose key expired are pruned from the index.
func (s *SnapshotStore) List(ctx context.Context) ([]models.ReceiveLocation, error) {
	ids, err := s.client.SMembers(ctx, s.index()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]models.ReceiveLocation, 0, len(values))
	var expired []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}

		var loc models.ReceiveLocation
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			expired = append(expired, ids[i])
			continue
		}
		out = append(out, loc)
	}

	if len(expired) > 0 {
		if err := s.client.SRem(ctx, s.index(), expired...).Err(); err != nil {
			return out, fmt.Errorf("redis prune index: %w", err)
		}
	}

	return out, nil
}
