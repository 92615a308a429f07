package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "oauth:state:"

// Redis shares outstanding state tokens between instances. GETDEL makes
// validation atomic per key.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *Redis) Issue(ctx context.Context) (string, error) {
	tok, err := newToken()
	if err != nil {
		return "", err
	}
	ok, err := r.rdb.SetNX(ctx, r.prefix+tok, "1", r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store state token: %w", err)
	}
	if !ok {
		return "", errors.New("store state token: collision")
	}
	return tok, nil
}

func (r *Redis) ValidateAndConsume(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	err := r.rdb.GetDel(ctx, r.prefix+token).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume state token: %w", err)
	}
	return true, nil
}
