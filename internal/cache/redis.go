package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zfogg/sidechain/backend/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// RedisClient wraps the redis.Client with centralized connection pooling.
// The Stats Recorder uses SetNX to dedupe Detection writes under
// at-most-once delivery (spec.md §4.8). Rate limiting does not use it:
// internal/ratelimit keeps its token buckets in process.
type RedisClient struct {
	client *redis.Client
}

var globalRedis *RedisClient

// NewRedisClient creates and initializes a Redis client with connection pooling.
func NewRedisClient(host string, port string, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		return nil, err
	}

	rc := &RedisClient{client: client}
	globalRedis = rc

	logger.Log.Info("Redis client connected successfully",
		zap.String("address", addr),
	)

	return rc, nil
}

// GetRedisClient returns the global Redis client instance.
func GetRedisClient() *RedisClient {
	return globalRedis
}

// Close closes the Redis connection gracefully.
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

// Raw exposes the underlying client for components that need Redis
// primitives this wrapper doesn't cover.
func (rc *RedisClient) Raw() *redis.Client {
	return rc.client
}

func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	_, span := otel.Tracer("redis").Start(ctx, "redis.get")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.key", maskSensitiveKey(key)),
		attribute.String("cache.operation", "get"),
	)

	result, err := rc.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	return result, err
}

func (rc *RedisClient) Set(ctx context.Context, key string, value interface{}) error {
	_, span := otel.Tracer("redis").Start(ctx, "redis.set")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.key", maskSensitiveKey(key)),
		attribute.String("cache.operation", "set"),
	)

	err := rc.client.Set(ctx, key, value, 0).Err()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	return err
}

func (rc *RedisClient) SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	_, span := otel.Tracer("redis").Start(ctx, "redis.setex")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.key", maskSensitiveKey(key)),
		attribute.String("cache.operation", "setex"),
		attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())),
	)

	err := rc.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	return err
}

// SetNXEx sets key to value only if it doesn't already exist, with a TTL.
// The Stats Recorder calls this with a Detection's idempotency key before
// committing a rollup write; false means another worker already recorded
// this interval (spec.md §4.8, at-most-once delivery tolerance).
func (rc *RedisClient) SetNXEx(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	_, span := otel.Tracer("redis").Start(ctx, "redis.setnx")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.key", maskSensitiveKey(key)),
		attribute.String("cache.operation", "setnx"),
	)

	ok, err := rc.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}
	return ok, err
}

func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

func (rc *RedisClient) Exists(ctx context.Context, keys ...string) (int64, error) {
	return rc.client.Exists(ctx, keys...).Result()
}

func (rc *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return rc.client.Incr(ctx, key).Result()
}

func (rc *RedisClient) IncrBy(ctx context.Context, key string, increment int64) (int64, error) {
	return rc.client.IncrBy(ctx, key, increment).Result()
}

func (rc *RedisClient) GetInt(ctx context.Context, key string) (int64, error) {
	return rc.client.Get(ctx, key).Int64()
}

func (rc *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return rc.client.Expire(ctx, key, ttl).Err()
}

func (rc *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rc.client.TTL(ctx, key).Result()
}

func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	return rc.client.Keys(ctx, pattern).Result()
}

// extractKeyPattern groups keys sharing a domain prefix so logs/traces
// never carry a raw station or detection ID.
func extractKeyPattern(key string) string {
	if len(key) == 0 {
		return "other"
	}

	patterns := map[string]string{
		"station:":    "station:*",
		"detection:":  "detection:*",
		"idempotent:": "idempotent:*",
		"ratelimit:":  "ratelimit:*",
		"fp-index:":   "fp-index:*",
	}

	for prefix, pattern := range patterns {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			return pattern
		}
	}

	return "other"
}

func maskSensitiveKey(key string) string {
	pattern := extractKeyPattern(key)
	if pattern == "other" {
		return key[:minInt(10, len(key))] + "..."
	}
	return pattern
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
