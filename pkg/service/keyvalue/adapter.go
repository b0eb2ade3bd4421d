package keyvalue

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// Options contains the settings for connecting to Redis.
type Options struct {
	Address      string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient creates a Redis client from opts.
//
// The client does not connect until it is first used and never retries a
// failed command. Pooled connections closed by the server are discarded
// before a command is written to them, so requests succeed again as soon as
// the store is back.
func NewRedisClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
		// -1 disables retries; 0 would mean the default of 3.
		MaxRetries:   -1,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
}

// Ping checks that Redis can be reached with c.
func Ping(ctx context.Context, c *redis.Client) error {
	err := c.Ping(ctx).Err()
	return classify(err, "ping", "")
}

// NewRedisAdapter creates a Redis client that supports counters.
func NewRedisAdapter(c *redis.Client) *RedisAdapter {
	if c == nil {
		panic("nil key value client")
	}
	return &RedisAdapter{c: c}
}

// Ensure RedisAdapter implements the KeyValue interface.
var _ KeyValue = (*RedisAdapter)(nil)

// RedisAdapter adapts a Redis client to support the KeyValue interface.
type RedisAdapter struct {
	c *redis.Client
}

// GetCounter gets the current value of a counter.
//
// A counter that does not exist yet has the value 0.
func (r *RedisAdapter) GetCounter(ctx context.Context, key string) (int64, error) {
	if len(key) == 0 {
		return 0, errors.New("invalid key")
	}
	current, err := r.c.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err, "get", key)
	}
	v, err := strconv.ParseInt(current, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected format or not a number for key %q", key)
	}
	return v, nil
}

// IncrementCounter increments the value with the given key and returns the
// incremented value.
//
// If the key does not exist, it will be initialized to 0 and incremented.
func (r *RedisAdapter) IncrementCounter(ctx context.Context, key string) (int64, error) {
	if len(key) == 0 {
		return 0, errors.New("invalid key")
	}
	v, err := r.c.Incr(ctx, key).Result()
	if err != nil {
		return 0, classify(err, "increment", key)
	}
	return v, nil
}
