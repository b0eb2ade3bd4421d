// Package config loads the service configuration from the environment.
package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Defaults used when a variable is not set.
const (
	DefaultRedisHost     = "redis"
	DefaultRedisPort     = "6379"
	DefaultListenAddress = "0.0.0.0:5000"
	DefaultCounterKey    = "hits"
	DefaultDialTimeout   = 5 * time.Second
	DefaultIOTimeout     = 2 * time.Second
)

// Config contains all of the configuration for running the service. It is
// read once at startup.
type Config struct {
	// Name is the greeted name. NameSet is false when NAME is absent, in
	// which case Name is empty.
	Name    string
	NameSet bool

	RedisAddress      string
	RedisPassword     string
	RedisDB           int
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration

	ListenAddress string
	// MetricsAddress is empty when metrics are not served.
	MetricsAddress string
	CounterKey     string

	// Debug enables stack traces in error responses and debug logs. It is
	// on by default and is unsuitable for production.
	Debug bool
}

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads the configuration from the process environment.
//
// Variables from the given files, or from ./.env when none are given, are
// added to the environment first without overriding variables that are
// already set. A missing ./.env is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, errors.Wrap(err, "unable to load environment file")
		}
	}
	return Parse(os.LookupEnv)
}

// Parse builds a Config from the variables returned by lookup.
func Parse(lookup LookupFunc) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	var (
		c   Config
		err error
	)
	c.Name, c.NameSet = lookup("NAME")

	c.RedisAddress = get("REDIS_ADDRESS", "")
	if c.RedisAddress == "" {
		c.RedisAddress = net.JoinHostPort(get("REDIS_HOST", DefaultRedisHost), get("REDIS_PORT", DefaultRedisPort))
	}
	c.RedisPassword = get("REDIS_PASSWORD", "")
	if c.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		return Config{}, errors.Wrap(err, "invalid REDIS_DB")
	}
	if c.RedisDialTimeout, err = duration(get("REDIS_DIAL_TIMEOUT", ""), DefaultDialTimeout); err != nil {
		return Config{}, errors.Wrap(err, "invalid REDIS_DIAL_TIMEOUT")
	}
	if c.RedisReadTimeout, err = duration(get("REDIS_READ_TIMEOUT", ""), DefaultIOTimeout); err != nil {
		return Config{}, errors.Wrap(err, "invalid REDIS_READ_TIMEOUT")
	}
	if c.RedisWriteTimeout, err = duration(get("REDIS_WRITE_TIMEOUT", ""), DefaultIOTimeout); err != nil {
		return Config{}, errors.Wrap(err, "invalid REDIS_WRITE_TIMEOUT")
	}

	c.ListenAddress = get("LISTEN_ADDRESS", DefaultListenAddress)
	c.MetricsAddress = get("METRICS_ADDRESS", "")
	c.CounterKey = get("COUNTER_KEY", DefaultCounterKey)

	if c.Debug, err = strconv.ParseBool(get("DEBUG", "true")); err != nil {
		return Config{}, errors.Wrap(err, "invalid DEBUG")
	}
	return c, nil
}

func duration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if d <= 0 {
		return 0, errors.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}
