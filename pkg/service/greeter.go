// Package service implements the business logic for the greeting hit counter.
package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-kit/kit/log"

	"github.com/pkg/errors"

	"github.com/rwool/hitcounter/pkg/service/keyvalue"
)

// DefaultCounterKey is the key of the counter incremented on every greeting.
const DefaultCounterKey = "hits"

// GreeterService is the user accessible service.
type GreeterService interface {
	Greet(ctx context.Context) (Greeting, error)
}

// Greeting is the response for a greeting request.
type Greeting struct {
	Name string
	Hits int64
}

// String formats the greeting as shown to visitors.
func (g Greeting) String() string {
	return "Greetings from " + g.Name + " " + strconv.FormatInt(g.Hits, 10) + " times!!!"
}

// GreeterServiceConfig contains the configuration for a GreeterService.
type GreeterServiceConfig struct {
	KeyVal keyvalue.KeyValue
	Log    log.Logger
	// Name is the greeted name. An empty name is allowed.
	Name string
	// CounterKey defaults to DefaultCounterKey.
	CounterKey string
}

type greeterService struct {
	kv   keyvalue.KeyValue
	l    log.Logger
	name string
	key  string
}

func newGreeterService(conf GreeterServiceConfig) *greeterService {
	if conf.KeyVal == nil {
		panic("nil key value store")
	}
	l := conf.Log
	if l == nil {
		l = log.NewNopLogger()
	}
	key := conf.CounterKey
	if key == "" {
		key = DefaultCounterKey
	}
	return &greeterService{
		kv:   conf.KeyVal,
		l:    l,
		name: conf.Name,
		key:  key,
	}
}

// NewGreeterService returns a GreeterService.
func NewGreeterService(conf GreeterServiceConfig) GreeterService {
	return newGreeterService(conf)
}

// Greet counts a visit and returns the greeting with the current count.
//
// The value returned by the increment is not used. The count is read back
// separately, so a concurrent visit landing between the two calls is
// included in the displayed count. If the read fails after a successful
// increment, the visit stays counted.
func (g *greeterService) Greet(ctx context.Context) (Greeting, error) {
	if _, err := g.kv.IncrementCounter(ctx, g.key); err != nil {
		return Greeting{}, errors.Wrap(err, "unable to count visit")
	}
	hits, err := g.kv.GetCounter(ctx, g.key)
	if err != nil {
		return Greeting{}, errors.Wrap(err, "unable to read visit count")
	}
	_ = g.l.Log("LEVEL", "DEBUG", "MESSAGE", fmt.Sprintf("Counter %s is at %d", g.key, hits))
	return Greeting{Name: g.name, Hits: hits}, nil
}
