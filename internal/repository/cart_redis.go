package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jewel-store/internal/domain"

	"github.com/redis/go-redis/v9"
)

const cartKeyPrefix = "cart"

// RedisCartStore keeps each cart as a JSON value under cart:<session key>.
// Every save refreshes the TTL, so abandoned carts expire on their own.
type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCartStore creates a cart side-store backed by Redis. A zero ttl keeps
// snapshots forever.
func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{client: client, ttl: ttl}
}

func (s *RedisCartStore) LoadCart(ctx context.Context, key string) (*domain.Cart, error) {
	raw, err := s.client.Get(ctx, redisCartKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart from redis: %w", err)
	}

	cart := domain.NewCart()
	if err := json.Unmarshal(raw, cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart snapshot: %w", err)
	}
	return cart, nil
}

func (s *RedisCartStore) SaveCart(ctx context.Context, key string, cart *domain.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart snapshot: %w", err)
	}
	if err := s.client.Set(ctx, redisCartKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart to redis: %w", err)
	}
	return nil
}

func redisCartKey(sessionKey string) string {
	return cartKeyPrefix + ":" + sessionKey
}
