package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type KeyType string

const (
	CALL_TURNS         KeyType = "astra_voice_call_turns"
	CALL_META          KeyType = "astra_voice_call_meta"
	RECORDING_ATTEMPTS KeyType = "astra_voice_recording_attempt"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

var ErrKeyNotExist = redis.Nil

type RedisServiceInterface interface {
	GenerateKey(keyType KeyType, identifier string) string
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key string, value string, ttl time.Duration) error
	SetValueIfAbsent(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	DelValue(ctx context.Context, keys ...string) error
	GetList(ctx context.Context, key string) ([]string, error)
	AppendListTrimmed(ctx context.Context, key string, values []string, maxLen int64, ttl time.Duration) (int64, error)
	GetHash(ctx context.Context, key string) (map[string]string, error)
	SetHashFields(ctx context.Context, key string, ttl time.Duration, fields map[string]string) error
}

type RedisService struct {
	client *redis.Client
}

func NewRedisService(config *RedisConfig) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisService{
		client: client,
	}, nil
}

// NewRedisServiceWithClient wraps an existing client
func NewRedisServiceWithClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

// Close closes the underlying client
func (r *RedisService) Close() error {
	return r.client.Close()
}

// GenerateKey generates a Redis key with the given key type and identifier
func (r *RedisService) GenerateKey(keyType KeyType, identifier string) string {
	return fmt.Sprintf("%s:%s:", string(keyType), identifier)
}

// GetValue gets a value from Redis by key
func (r *RedisService) GetValue(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetValue sets a value in Redis with TTL
func (r *RedisService) SetValue(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// SetValueIfAbsent sets key only when it does not exist and reports whether it was set
func (r *RedisService) SetValueIfAbsent(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

// DelValue deletes values from Redis by key
func (r *RedisService) DelValue(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// GetList returns all elements of a list, empty when the key does not exist
func (r *RedisService) GetList(ctx context.Context, key string) ([]string, error) {
	vals, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return vals, nil
}

// AppendListTrimmed pushes values, keeps only the newest maxLen elements and
// refreshes the TTL inside one MULTI/EXEC so concurrent writers never observe
// a half-applied append. Returns the list length after trimming.
func (r *RedisService) AppendListTrimmed(ctx context.Context, key string, values []string, maxLen int64, ttl time.Duration) (int64, error) {
	if len(values) == 0 {
		return r.client.LLen(ctx, key).Result()
	}

	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}

	var llen *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, args...)
		pipe.LTrim(ctx, key, -maxLen, -1)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		llen = pipe.LLen(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append list %s: %w", key, err)
	}
	return llen.Val(), nil
}

// GetHash returns all fields of a hash, empty when the key does not exist
func (r *RedisService) GetHash(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

// SetHashFields writes fields and refreshes the TTL atomically
func (r *RedisService) SetHashFields(ctx context.Context, key string, ttl time.Duration, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}
