package hibernation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/tabkeeper/internal/domain"
	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
)

const (
	// DefaultSnapshotTTL bounds how long an orphaned snapshot survives a crash
	DefaultSnapshotTTL = 7 * 24 * time.Hour
)

// RedisBackend stores snapshots as JSON values in redis.
type RedisBackend struct {
	client redis.UniversalClient
	keys   Keys
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisBackend creates a backend scoped to instance. An empty instance
// gets a fresh random id, so snapshots of previous runs are never reused.
func NewRedisBackend(client redis.UniversalClient, instance string, ttl time.Duration, log logger.Logger) *RedisBackend {
	if instance == "" {
		instance = uuid.NewString()
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisBackend{
		client: client,
		keys:   NewKeys(instance),
		ttl:    ttl,
		logger: log,
	}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Put(ctx context.Context, id domain.TabID, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.keys.Snapshot(id), data, r.ttl)
		pipe.SAdd(ctx, r.keys.All(), uint64(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot for tab %d: %w", id, err)
	}
	return nil
}

func (r *RedisBackend) Take(ctx context.Context, id domain.TabID) (domain.Snapshot, error) {
	var get *redis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.GetDel(ctx, r.keys.Snapshot(id))
		pipe.SRem(ctx, r.keys.All(), uint64(id))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, fmt.Errorf("failed to take snapshot for tab %d: %w", id, err)
	}

	data, err := get.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, fmt.Errorf("%w: snapshot for tab %d", domain.ErrNotFound, id)
		}
		return domain.Snapshot{}, fmt.Errorf("failed to read snapshot for tab %d: %w", id, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (r *RedisBackend) Delete(ctx context.Context, id domain.TabID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.keys.Snapshot(id))
		pipe.SRem(ctx, r.keys.All(), uint64(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot for tab %d: %w", id, err)
	}
	return nil
}

// IDs lists the members of the id set. Members whose value expired are
// pruned from the set and omitted.
func (r *RedisBackend) IDs(ctx context.Context) ([]domain.TabID, error) {
	members, err := r.client.SMembers(ctx, r.keys.All()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot ids: %w", err)
	}
	if len(members) == 0 {
		return []domain.TabID{}, nil
	}

	pipe := r.client.Pipeline()
	exists := make([]*redis.IntCmd, len(members))
	for i, m := range members {
		exists[i] = pipe.Exists(ctx, r.keys.snapshotPrefix()+m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check snapshot keys: %w", err)
	}

	ids := make([]domain.TabID, 0, len(members))
	var expired []any
	for i, m := range members {
		id, err := ParseTabID(m)
		if err != nil {
			r.logger.Warn("skipping malformed snapshot id", logger.String("member", m), logger.Error(err))
			expired = append(expired, m)
			continue
		}
		if exists[i].Val() == 0 {
			expired = append(expired, strconv.FormatUint(uint64(id), 10))
			continue
		}
		ids = append(ids, id)
	}
	if len(expired) > 0 {
		if err := r.client.SRem(ctx, r.keys.All(), expired...).Err(); err != nil {
			r.logger.Warn("failed to prune expired snapshot ids", logger.Error(err))
		}
	}
	slices.Sort(ids)
	return ids, nil
}
