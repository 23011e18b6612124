package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisPublisher publishes invalidations on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, keys ...string) error {
	payload, err := encodeKeys(keys)
	if err == nil {
		err = p.client.Publish(ctx, p.channel, payload).Err()
	}
	observe(BackendRedis, err)
	if err != nil {
		return fmt.Errorf("publish invalidation on %s: %w", p.channel, err)
	}
	return nil
}

// ListenRedis evicts every key received on channel from local until ctx ends.
func ListenRedis(ctx context.Context, client redis.UniversalClient, channel string, local *Local, logger *slog.Logger) error {
	if client == nil {
		return errors.New("redis client is nil")
	}
	if local == nil {
		return errors.New("local cache is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			applyInvalidation(local, channel, msg.Payload, logger)
		}
	}
}
