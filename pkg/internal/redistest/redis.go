// Package redistest implements support code for testing with Redis.
package redistest

import (
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rwool/hitcounter/pkg/service/keyvalue"
)

// RedisCredentials holds the credentials for connecting to Redis.
type RedisCredentials struct {
	Username string
	Password string
	IP       string
}

// GetCredentials gets the Redis credentials from environment variables.
func GetCredentials() (rc RedisCredentials, ok bool) {
	u := os.Getenv("REDIS_USER")
	p := os.Getenv("REDIS_PASS")
	i := os.Getenv("REDIS_IP")
	if len(i) > 0 {
		return RedisCredentials{
			Username: u,
			Password: p,
			IP:       i,
		}, true
	}
	return RedisCredentials{}, false
}

// newClient builds the client the same way the service does.
func newClient(addr, password string) *redis.Client {
	return keyvalue.NewRedisClient(keyvalue.Options{
		Address:      addr,
		Password:     password,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// Connect connects to a real Redis and returns the Client object.
//
// The test is skipped when no credentials are set.
func Connect(t *testing.T) *redis.Client {
	creds, ok := GetCredentials()
	if !ok {
		t.Skip("Missing Redis credentials")
	}
	client := newClient(creds.IP, creds.Password)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// Start starts an in-process Redis server and returns a client for it.
//
// The server is stopped when the test finishes. Closing and restarting the
// returned server simulates an outage of the store.
func Start(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := newClient(mr.Addr(), "")
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}
