package keyvaluemock

import (
	"context"
	"sync"

	"github.com/rwool/hitcounter/pkg/service/keyvalue"
)

// KeyValueMock is a mock implementation of the keyvalue.KeyValue type.
//
// Fail makes every following call fail. FailGet only fails GetCounter, which
// leaves increments going through.
type KeyValueMock struct {
	counters *sync.Map

	mu     sync.Mutex
	err    error
	getErr error
	calls  []string
}

// Ensure KeyValueMock implements the KeyValue interface.
var _ keyvalue.KeyValue = (*KeyValueMock)(nil)

// New returns a new KeyValueMock.
func New() *KeyValueMock {
	return &KeyValueMock{counters: new(sync.Map)}
}

type counter struct {
	i  int64
	mu sync.Mutex
}

func (k *KeyValueMock) getCounter(key string) *counter {
	v, ok := k.counters.Load(key)
	if !ok {
		v, _ = k.counters.LoadOrStore(key, &counter{})
	}
	return v.(*counter)
}

// record notes the call and returns the error it should fail with, if any.
func (k *KeyValueMock) record(op string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = append(k.calls, op)
	if k.err != nil {
		return k.err
	}
	if op == "get" {
		return k.getErr
	}
	return nil
}

// Fail sets the error returned by all calls. A nil err clears it.
func (k *KeyValueMock) Fail(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.err = err
}

// FailGet sets the error returned by GetCounter. A nil err clears it.
func (k *KeyValueMock) FailGet(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.getErr = err
}

// Calls returns the operations performed so far, in order.
func (k *KeyValueMock) Calls() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, len(k.calls))
	copy(out, k.calls)
	return out
}

// Seed sets the value of the counter for key without recording a call.
// It exists only for seeding tests.
func (k *KeyValueMock) Seed(key string, value int64) {
	c := k.getCounter(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.i = value
}

// GetCounter gets the current value of the counter for key.
func (k *KeyValueMock) GetCounter(ctx context.Context, key string) (int64, error) {
	if err := k.record("get"); err != nil {
		return 0, err
	}
	c := k.getCounter(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.i, nil
}

// IncrementCounter increments the value of the counter for key.
func (k *KeyValueMock) IncrementCounter(ctx context.Context, key string) (int64, error) {
	if err := k.record("increment"); err != nil {
		return 0, err
	}
	c := k.getCounter(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.i++
	return c.i, nil
}
