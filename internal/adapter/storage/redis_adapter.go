package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shopassist/internal/core/domain"
)

const stockKeyPrefix = "stock:"

// KEYS[1] = stock hash, ARGV[1] = size field, ARGV[2] = quantity
var reserveStockScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if not current then
	return 0
end

current = tonumber(current)
local quantity = tonumber(ARGV[2])
if current >= quantity then
	redis.call('HINCRBY', KEYS[1], ARGV[1], -quantity)
	return 1
end

return 0
`)

// RedisAdapter is an inventory ledger backed by one hash per product,
// stock:<product> with a field per size.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func stockKey(productID string) string {
	return stockKeyPrefix + productID
}

func (r *RedisAdapter) Reserve(ctx context.Context, productID string, size domain.Size, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, nil
	}

	result, err := reserveStockScript.Run(ctx, r.client, []string{stockKey(productID)}, string(size), quantity).Int()
	if err != nil {
		return false, fmt.Errorf("reserve script: %w", err)
	}

	return result == 1, nil
}

func (r *RedisAdapter) Release(ctx context.Context, productID string, size domain.Size, quantity int) error {
	return r.client.HIncrBy(ctx, stockKey(productID), string(size), int64(quantity)).Err()
}

func (r *RedisAdapter) Check(ctx context.Context, productID string, size domain.Size) (bool, int, error) {
	n, err := r.client.HGet(ctx, stockKey(productID), string(size)).Int()
	if errors.Is(err, redis.Nil) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("hget stock: %w", err)
	}
	return n > 0, n, nil
}

func (r *RedisAdapter) Stock(ctx context.Context, productID string) (map[domain.Size]int, error) {
	fields, err := r.client.HGetAll(ctx, stockKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall stock: %w", err)
	}

	out := make(map[domain.Size]int, len(fields))
	for field, raw := range fields {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("parse stock %s/%s: %w", productID, field, err)
		}
		out[domain.Size(field)] = n
	}
	return out, nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID string, size domain.Size, quantity int) error {
	return r.client.HSet(ctx, stockKey(productID), string(size), quantity).Err()
}

// Seed overwrites the stock of every listed product in one round trip.
func (r *RedisAdapter) Seed(ctx context.Context, stock map[string]map[domain.Size]int) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for productID, sizes := range stock {
			pipe.Del(ctx, stockKey(productID))
			for size, n := range sizes {
				pipe.HSet(ctx, stockKey(productID), string(size), n)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed stock: %w", err)
	}
	return nil
}
