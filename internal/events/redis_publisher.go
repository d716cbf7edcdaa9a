package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChannelModeration is the Redis channel moderation events are forwarded to
const ChannelModeration = "moderation:events"

// RedisPublisher forwards bus events to a Redis pub/sub channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRedisPublisher 생성자
func NewRedisPublisher(client *redis.Client, logger zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: ChannelModeration,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// Attach subscribes the publisher to the given topics on bus
func (p *RedisPublisher) Attach(bus *Bus, topics ...string) {
	for _, topic := range topics {
		bus.Subscribe("redis-publisher", topic, p.Handle)
	}
}

// Handle publishes one event. Failures are logged and dropped.
func (p *RedisPublisher) Handle(event Event) {
	if p.client == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", event.Topic).Msg("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Warn().Err(err).Str("topic", event.Topic).Str("event_id", event.ID).Msg("failed to publish event to redis")
	}
}
