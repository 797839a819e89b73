package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/config"
)

const redisChangeChannel = "support:changes"

// Redis backs the KV and Notifier contracts with a Redis instance. Change
// notifications ride a pub/sub channel, which is the cross-process
// generalization of browser storage events.
type Redis struct {
	Client *redis.Client
	logger *zap.Logger
}

// NewRedis connects to Redis using the provided configuration. Connection
// problems are logged but not fatal; the service degrades to empty state.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client, logger: logger}
}

// Get returns the value at key, or (nil, nil) when the key is absent.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores value at key without expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.Client.Set(ctx, key, value, 0).Err()
}

// Incr atomically bumps the counter at key.
func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return r.Client.Incr(ctx, key).Result()
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// Publish announces a key change with the writer's origin id.
func (r *Redis) Publish(ctx context.Context, key, origin string) error {
	return r.Client.Publish(ctx, redisChangeChannel, key+"|"+origin).Err()
}

// Subscribe listens for key changes until the returned cancel runs.
func (r *Redis) Subscribe(ctx context.Context, fn func(key, origin string)) (func(), error) {
	sub := r.Client.Subscribe(ctx, redisChangeChannel)
	go func() {
		for msg := range sub.Channel() {
			key, origin, ok := splitChangePayload(msg.Payload)
			if !ok {
				continue
			}
			fn(key, origin)
		}
	}()
	return func() { _ = sub.Close() }, nil
}

func splitChangePayload(payload string) (key, origin string, ok bool) {
	idx := strings.LastIndex(payload, "|")
	if idx < 0 {
		return "", "", false
	}
	return payload[:idx], payload[idx+1:], true
}
