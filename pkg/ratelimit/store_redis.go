package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares bucket state between runs against the same store.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a store whose keys are namespaced by the shop
// hostname, e.g. "metafield-export:example.myshopify.com:call_limit:used".
func NewRedisStore(redisClient *redis.Client, shop string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: "metafield-export:" + shop + ":",
	}
}

func (r *RedisStore) key(suffix string) string {
	return r.prefix + suffix
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (*BucketState, error) {
	used, err := r.redis.Get(ctx, r.key(RedisKeyUsed)).Int()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get used calls: %w", err)
	}

	limit, err := r.redis.Get(ctx, r.key(RedisKeyLimit)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get call limit: %w", err)
	}

	state := &BucketState{
		Used:  used,
		Limit: limit,
	}

	lastUpdate, err := r.redis.Get(ctx, r.key(RedisKeyLastUpdate)).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}
	if len(lastUpdate) > 0 {
		if err := json.Unmarshal(lastUpdate, &state.LastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return state, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, state *BucketState) error {
	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	pipe := r.redis.Pipeline()
	pipe.Set(ctx, r.key(RedisKeyUsed), state.Used, 0)
	pipe.Set(ctx, r.key(RedisKeyLimit), state.Limit, 0)
	pipe.Set(ctx, r.key(RedisKeyLastUpdate), lastUpdateJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store bucket state in redis: %w", err)
	}
	return nil
}
