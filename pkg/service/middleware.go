package service

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
)

// Middleware decorates a GreeterService.
type Middleware func(GreeterService) GreeterService

// Chain applies the middlewares to s so that the first one is the outermost.
func Chain(s GreeterService, mw ...Middleware) GreeterService {
	for i := len(mw) - 1; i >= 0; i-- {
		s = mw[i](s)
	}
	return s
}

// LoggingMiddleware logs every greeting along with its outcome.
func LoggingMiddleware(l log.Logger) Middleware {
	return func(next GreeterService) GreeterService {
		return loggingMiddleware{l: l, next: next}
	}
}

type loggingMiddleware struct {
	l    log.Logger
	next GreeterService
}

func (m loggingMiddleware) Greet(ctx context.Context) (g Greeting, err error) {
	defer func(begin time.Time) {
		if err != nil {
			_ = m.l.Log("LEVEL", "ERROR", "MESSAGE", "Greet failed", "err", err.Error(), "took", time.Since(begin))
			return
		}
		_ = m.l.Log("LEVEL", "DEBUG", "MESSAGE", "Greet", "hits", g.Hits, "took", time.Since(begin))
	}(time.Now())
	return m.next.Greet(ctx)
}

// Instruments contains the metrics recorded by InstrumentingMiddleware.
type Instruments struct {
	// Requests is labelled with "error".
	Requests metrics.Counter
	Latency  metrics.Histogram
	Hits     metrics.Gauge
}

// InstrumentingMiddleware records request counts, latency and the last
// observed counter value.
func InstrumentingMiddleware(in Instruments) Middleware {
	return func(next GreeterService) GreeterService {
		return instrumentingMiddleware{in: in, next: next}
	}
}

type instrumentingMiddleware struct {
	in   Instruments
	next GreeterService
}

func (m instrumentingMiddleware) Greet(ctx context.Context) (g Greeting, err error) {
	defer func(begin time.Time) {
		m.in.Requests.With("error", strconv.FormatBool(err != nil)).Add(1)
		m.in.Latency.Observe(time.Since(begin).Seconds())
		if err == nil {
			m.in.Hits.Set(float64(g.Hits))
		}
	}(time.Now())
	return m.next.Greet(ctx)
}
