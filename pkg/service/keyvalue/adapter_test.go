package keyvalue_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwool/hitcounter/pkg/internal/redistest"
	"github.com/rwool/hitcounter/pkg/service/keyvalue"
)

func TestIncrementAndGet(t *testing.T) {
	t.Parallel()
	c, _ := redistest.Start(t)
	rc := keyvalue.NewRedisAdapter(c)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const key = "hits"
	var current int64
	incr := func() {
		v, err := rc.IncrementCounter(ctx, key)
		require.NoError(t, err, "Should increment counter with no error.")
		current++
		require.Equal(t, current, v, "Increment should return the new value.")
	}
	get := func() {
		val, err := rc.GetCounter(ctx, key)
		require.NoError(t, err, "Should get counter with no error.")
		require.Equal(t, current, val, "Incremented value should equal retrieved value.")
	}

	get()
	incr()
	get()
	incr()
	incr()
	get()
	get()
	incr()
	get()
}

func TestIncrementExistingCounter(t *testing.T) {
	t.Parallel()
	c, mr := redistest.Start(t)
	rc := keyvalue.NewRedisAdapter(c)
	ctx := context.Background()

	require.NoError(t, mr.Set("hits", "41"), "Should seed counter.")
	v, err := rc.IncrementCounter(ctx, "hits")
	require.NoError(t, err, "Should increment counter.")
	assert.Equal(t, int64(42), v, "Increment should continue from the set value.")

	stored, err := mr.Get("hits")
	require.NoError(t, err, "Counter should exist in the store.")
	assert.Equal(t, "42", stored, "Counter should be stored as a decimal string.")
}

func TestInvalidKey(t *testing.T) {
	t.Parallel()
	c, _ := redistest.Start(t)
	rc := keyvalue.NewRedisAdapter(c)
	ctx := context.Background()

	_, err := rc.IncrementCounter(ctx, "")
	assert.Error(t, err, "Empty key should be rejected.")
	_, err = rc.GetCounter(ctx, "")
	assert.Error(t, err, "Empty key should be rejected.")
}

func TestNotANumber(t *testing.T) {
	t.Parallel()
	c, mr := redistest.Start(t)
	rc := keyvalue.NewRedisAdapter(c)
	ctx := context.Background()
	require.NoError(t, mr.Set("hits", "abc"))

	_, err := rc.GetCounter(ctx, "hits")
	require.Error(t, err, "Non-numeric counter should not be readable.")
	assert.False(t, keyvalue.IsUnavailable(err), "Bad data is not an outage.")

	_, err = rc.IncrementCounter(ctx, "hits")
	require.Error(t, err, "Non-numeric counter should not be incremented.")
	assert.False(t, keyvalue.IsUnavailable(err), "Error reply is not an outage.")
}

func TestUnavailable(t *testing.T) {
	t.Parallel()
	c, mr := redistest.Start(t)
	rc := keyvalue.NewRedisAdapter(c)
	ctx := context.Background()

	_, err := rc.IncrementCounter(ctx, "hits")
	require.NoError(t, err, "Should increment while the store is up.")

	mr.Close()
	_, err = rc.IncrementCounter(ctx, "hits")
	require.Error(t, err, "Increment should fail while the store is down.")
	assert.True(t, keyvalue.IsUnavailable(err), "Error should report an unavailable store: %v", err)

	_, err = rc.GetCounter(ctx, "hits")
	require.Error(t, err, "Get should fail while the store is down.")
	assert.True(t, keyvalue.IsUnavailable(err), "Error should report an unavailable store: %v", err)
	assert.Error(t, keyvalue.Ping(ctx, c), "Ping should fail while the store is down.")

	require.NoError(t, mr.Restart())
	v, err := rc.IncrementCounter(ctx, "hits")
	require.NoError(t, err, "Increment should work again after recovery.")
	assert.Equal(t, int64(2), v, "Counter should survive the outage.")
	assert.NoError(t, keyvalue.Ping(ctx, c), "Ping should succeed after recovery.")
}

func TestNewRedisClient(t *testing.T) {
	t.Parallel()
	c := keyvalue.NewRedisClient(keyvalue.Options{
		Address:     "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	defer c.Close()
	assert.Equal(t, 0, c.Options().MaxRetries, "Client should never retry commands.")

	_, err := keyvalue.NewRedisAdapter(c).IncrementCounter(context.Background(), "hits")
	require.Error(t, err, "Nothing should be listening on port 1.")
	assert.True(t, keyvalue.IsUnavailable(err), "Refused connection should report an unavailable store: %v", err)
}

func TestRecoveryWithFullPool(t *testing.T) {
	t.Parallel()
	c, mr := redistest.Start(t)
	rc := keyvalue.NewRedisAdapter(c)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Check out several connections at once, then hand them all back so the
	// pool holds them idle.
	const workers = 10
	conns := make([]*redis.Conn, 0, workers)
	for i := 0; i < workers; i++ {
		conn := c.Conn()
		require.NoError(t, conn.Incr(ctx, "hits").Err(), "Increment should succeed.")
		conns = append(conns, conn)
	}
	for _, conn := range conns {
		require.NoError(t, conn.Close())
	}
	require.True(t, c.PoolStats().IdleConns >= workers, "Pool should hold the idle connections.")

	mr.Close()
	_, err := rc.IncrementCounter(ctx, "hits")
	require.Error(t, err, "Increment should fail while the store is down.")
	require.NoError(t, mr.Restart())

	for i := int64(1); i <= workers; i++ {
		v, err := rc.IncrementCounter(ctx, "hits")
		require.NoError(t, err, "Increment %d after recovery should succeed.", i)
		assert.Equal(t, workers+i, v, "No increment should be lost or repeated.")
	}
}

// silentListener accepts connections and never writes to them.
func silentListener(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	})
	return l.Addr().String()
}

func TestReadTimeout(t *testing.T) {
	t.Parallel()
	c := keyvalue.NewRedisClient(keyvalue.Options{
		Address:      silentListener(t),
		DialTimeout:  time.Second,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	defer c.Close()
	rc := keyvalue.NewRedisAdapter(c)

	_, err := rc.IncrementCounter(context.Background(), "hits")
	require.Error(t, err, "A store that never answers should time out.")
	assert.True(t, keyvalue.IsUnavailable(err), "Timeout should report an unavailable store: %v", err)

	_, err = rc.GetCounter(context.Background(), "hits")
	require.Error(t, err, "A store that never answers should time out.")
	assert.True(t, keyvalue.IsUnavailable(err), "Timeout should report an unavailable store: %v", err)
}
