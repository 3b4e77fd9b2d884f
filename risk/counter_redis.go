package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCounter shares the per-minute bucket across worker processes.
// Each minute gets its own key with a short TTL, so no cleanup pass is
// needed.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, prefix: "riskgate:opm:"}
}

func (c *RedisCounter) key(minute int64) string {
	return fmt.Sprintf("%s%d", c.prefix, minute)
}

func (c *RedisCounter) Count(now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := c.client.Get(ctx, c.key(now.Unix()/60)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate counter read: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) Bump(now time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := c.key(now.Unix() / 60)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate counter bump: %w", err)
	}
	return nil
}
