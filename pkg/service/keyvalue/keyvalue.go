// Package keyvalue implements support for reading and updating counters held
// in a key value store.
package keyvalue

import (
	"context"
)

// KeyValue wraps the set of methods for working with counters identified by a
// given key.
//
// Implementations must not retry increments on their own. An increment that
// is replayed after a lost reply is counted twice.
type KeyValue interface {
	GetCounter(ctx context.Context, key string) (int64, error)
	IncrementCounter(ctx context.Context, key string) (int64, error)
}
