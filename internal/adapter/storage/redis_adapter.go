package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rlin26/cart-engine/internal/core/domain"
	"github.com/rlin26/cart-engine/internal/port"
)

const cartKeyPrefix = "cart:"

// RedisAdapter persists cart snapshots as JSON blobs, one per storage
// key. It implements port.LocalStore.
type RedisAdapter struct {
	client *redis.Client
	ns     string
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// NewNamespacedRedisAdapter isolates one cart instance under its own
// key namespace, for hosts running several carts against one redis.
func NewNamespacedRedisAdapter(client *redis.Client, namespace string) *RedisAdapter {
	return &RedisAdapter{client: client, ns: namespace + ":"}
}

func (r *RedisAdapter) storageKey(key string) string {
	return cartKeyPrefix + r.ns + key
}

func (r *RedisAdapter) Read(ctx context.Context, key string) ([]domain.CartItem, error) {
	raw, err := r.client.Get(ctx, r.storageKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", port.ErrStorageUnavailable, key, err)
	}

	var items []domain.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		// A corrupt snapshot is indistinguishable from a broken store
		// to the caller: the cart starts empty and stays in memory.
		return nil, fmt.Errorf("%w: decode %s: %v", port.ErrStorageUnavailable, key, err)
	}
	return items, nil
}

func (r *RedisAdapter) Write(ctx context.Context, key string, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", port.ErrStorageUnavailable, key, err)
	}

	if err := r.client.Set(ctx, r.storageKey(key), raw, 0).Err(); err != nil {
		if isOOM(err) {
			return fmt.Errorf("%w: write %s: %v", port.ErrStorageQuotaExceeded, key, err)
		}
		return fmt.Errorf("%w: write %s: %v", port.ErrStorageUnavailable, key, err)
	}
	return nil
}

// isOOM spots redis rejecting a write over its maxmemory limit.
func isOOM(err error) bool {
	return strings.HasPrefix(err.Error(), "OOM")
}
