package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Channels the service publishes on. Consumers (analytics, the gateway's SSE
// fan-out) subscribe by name.
const (
	EventJobDismissed    = "EVENT_JOB_DISMISSED"
	EventDismissalsReset = "EVENT_DISMISSALS_RESET"
)

// Publisher delivers fire-and-forget events.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes on Redis pub/sub.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher returns a Publisher backed by rdb.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// NopPublisher drops every event. Used when no Redis is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }
