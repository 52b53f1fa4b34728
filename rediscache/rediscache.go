// Package rediscache stores queryengine total counts in Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Alp4ka/queryengine"
)

type RedisCache struct {
	client *redis.Client
}

var _ queryengine.CountCache = (*RedisCache)(nil)

func New(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get fills dest from the JSON stored under key. A missing key is a miss,
// not an error.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}

	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val any, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, time.Duration(ttlSecs)*time.Second).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// InvalidateTable drops every cached count of table. Call it after writes
// when stale totals are not acceptable.
func (c *RedisCache) InvalidateTable(ctx context.Context, table string) error {
	iter := c.client.Scan(ctx, 0, queryengine.CountCacheKeyPrefix(table)+"*", 100).Iterator()

	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	return c.client.Del(ctx, keys...).Err()
}
