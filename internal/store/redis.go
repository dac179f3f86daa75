package store

import (
	"context"

	apperrors "github.com/arbazkhan002/datasketch/pkg/errors"
	"github.com/arbazkhan002/datasketch/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

// Redis is a Store backed by Redis sets. Each key maps to a SET holding its
// members, so idempotent insertion is delegated to SADD and concurrent
// inserts to the same key are resolved server-side. A registry set tracks
// all live keys for Keys/Size/ItemCounts.
//
// Keys are namespaced as "<prefix>/<key>"; the registry lives at
// "<prefix>!keys". Data keys always carry the "/" separator, so the
// registry can never collide with a key.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed store namespaced by prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) dataKey(key string) string {
	return r.prefix + "/" + key
}

func (r *Redis) registryKey() string {
	return r.prefix + "!keys"
}

func (r *Redis) Insert(ctx context.Context, key, member string) error {
	if err := r.client.SAdd(ctx, r.registryKey(), key); err != nil {
		return apperrors.NewStoreError("redis", "insert", key, err)
	}
	if err := r.client.SAdd(ctx, r.dataKey(key), member); err != nil {
		return apperrors.NewStoreError("redis", "insert", key, err)
	}
	return nil
}

func (r *Redis) Members(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.dataKey(key))
	if err != nil {
		return nil, apperrors.NewStoreError("redis", "members", key, err)
	}
	return members, nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.Exists(ctx, r.dataKey(key))
	if err != nil {
		return false, apperrors.NewStoreError("redis", "has", key, err)
	}
	return ok, nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.SRem(ctx, r.registryKey(), key); err != nil {
		return apperrors.NewStoreError("redis", "remove", key, err)
	}
	if err := r.client.Del(ctx, r.dataKey(key)); err != nil {
		return apperrors.NewStoreError("redis", "remove", key, err)
	}
	return nil
}

func (r *Redis) RemoveMember(ctx context.Context, key, member string) error {
	if err := r.client.SRem(ctx, r.dataKey(key), member); err != nil {
		return apperrors.NewStoreError("redis", "remove_member", key, err)
	}
	exists, err := r.client.Exists(ctx, r.dataKey(key))
	if err != nil {
		return apperrors.NewStoreError("redis", "remove_member", key, err)
	}
	if !exists {
		if err := r.client.SRem(ctx, r.registryKey(), key); err != nil {
			return apperrors.NewStoreError("redis", "remove_member", key, err)
		}
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.client.SMembers(ctx, r.registryKey())
	if err != nil {
		return nil, apperrors.NewStoreError("redis", "keys", "", err)
	}
	return keys, nil
}

func (r *Redis) Size(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.registryKey())
	if err != nil {
		return 0, apperrors.NewStoreError("redis", "size", "", err)
	}
	return int(n), nil
}

func (r *Redis) ItemCounts(ctx context.Context) (map[string]int64, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return nil, err
	}
	pipe := r.client.Pipeline()
	cmds := make(map[string]*goredis.IntCmd, len(keys))
	for _, key := range keys {
		cmds[key] = pipe.SCard(ctx, r.dataKey(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperrors.NewStoreError("redis", "item_counts", "", err)
	}
	counts := make(map[string]int64, len(keys))
	for key, cmd := range cmds {
		counts[key] = cmd.Val()
	}
	return counts, nil
}

func (r *Redis) NewBatch() Batch {
	return &redisBatch{store: r}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx); err != nil {
		return apperrors.NewStoreError("redis", "ping", "", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisBatch struct {
	store   *Redis
	entries []entry
}

func (b *redisBatch) Insert(key, member string) {
	b.entries = append(b.entries, entry{key: key, member: member})
}

// Flush applies all buffered entries in a single pipeline round-trip.
func (b *redisBatch) Flush(ctx context.Context) error {
	if len(b.entries) == 0 {
		return nil
	}
	pipe := b.store.client.Pipeline()
	for _, e := range b.entries {
		pipe.SAdd(ctx, b.store.registryKey(), e.key)
		pipe.SAdd(ctx, b.store.dataKey(e.key), e.member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewStoreError("redis", "batch_flush", "", err)
	}
	b.entries = b.entries[:0]
	return nil
}
