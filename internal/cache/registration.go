package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const registrationKeyPrefix = "reg:"

// Registration is a small TTL cache over "is this wallet registered".
// Injected into the auth service so its lifetime and TTL are owned by the
// composition root, not by a package-level map.
type Registration struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRegistration(client *redis.Client, ttl time.Duration) *Registration {
	return &Registration{client: client, ttl: ttl}
}

func (c *Registration) Get(ctx context.Context, wallet string) (registered bool, found bool, err error) {
	val, err := c.client.Get(ctx, registrationKeyPrefix+wallet).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (c *Registration) Set(ctx context.Context, wallet string, registered bool) error {
	val := "0"
	if registered {
		val = "1"
	}
	return c.client.Set(ctx, registrationKeyPrefix+wallet, val, c.ttl).Err()
}
