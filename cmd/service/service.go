package service

import (
	"context"
	"fmt"
	"net"
	gohttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rwool/hitcounter/pkg/config"
	"github.com/rwool/hitcounter/pkg/endpoint"
	"github.com/rwool/hitcounter/pkg/http"
	"github.com/rwool/hitcounter/pkg/service"
	"github.com/rwool/hitcounter/pkg/service/keyvalue"
)

const shutdownTimeout = 5 * time.Second

// Run runs the greeter service until the process is interrupted.
func Run() {
	l := newLogger(true)

	conf, err := config.Load()
	if err != nil {
		_ = l.Log("LEVEL", "ERROR", "MESSAGE", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
	l = newLogger(conf.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, l); err != nil {
		_ = l.Log("LEVEL", "ERROR", "MESSAGE", fmt.Sprintf("%+v", err))
		stop()
		os.Exit(1)
	}
}

// newLogger returns a JSON logger. DEBUG records are dropped unless debug is
// set.
func newLogger(debug bool) log.Logger {
	l := log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	if debug {
		return l
	}
	return debugFilter(l)
}

// debugFilter drops records logged with the DEBUG level.
func debugFilter(next log.Logger) log.Logger {
	return log.LoggerFunc(func(keyvals ...interface{}) error {
		for i := 0; i+1 < len(keyvals); i += 2 {
			if keyvals[i] == "LEVEL" && keyvals[i+1] == "DEBUG" {
				return nil
			}
		}
		return next.Log(keyvals...)
	})
}

func newInstruments() service.Instruments {
	const namespace, subsystem = "hitcounter", "greeter"
	return service.Instruments{
		Requests: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Number of greetings served.",
		}, []string{"error"}),
		Latency: kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time spent serving greetings.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{}),
		Hits: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hits",
			Help:      "Last visit count read from the store.",
		}, []string{}),
	}
}

// newHandler wires the service, endpoint and transport for conf.
func newHandler(conf config.Config, kv keyvalue.KeyValue, in *service.Instruments, l log.Logger) gohttp.Handler {
	mw := []service.Middleware{service.LoggingMiddleware(l)}
	if in != nil {
		mw = append(mw, service.InstrumentingMiddleware(*in))
	}
	greeter := service.Chain(service.NewGreeterService(service.GreeterServiceConfig{
		KeyVal:     kv,
		Log:        l,
		Name:       conf.Name,
		CounterKey: conf.CounterKey,
	}), mw...)

	return http.NewGreeterHTTPHandler(endpoint.MakeGreetEndpoint(greeter), http.HandlerConfig{
		Debug: conf.Debug,
		Options: map[string][]kithttp.ServerOption{
			"Greet": {kithttp.ServerErrorLogger(log.With(l, "LEVEL", "ERROR", "component", "http"))},
		},
	})
}

func run(ctx context.Context, conf config.Config, l log.Logger) error {
	if !conf.NameSet {
		_ = l.Log("LEVEL", "WARN", "MESSAGE", "NAME is not set, greeting with an empty name")
	}
	if conf.Debug {
		_ = l.Log("LEVEL", "WARN", "MESSAGE", "Debug mode is on, error responses include stack traces. Do not use it in production.")
	}

	rc := keyvalue.NewRedisClient(keyvalue.Options{
		Address:      conf.RedisAddress,
		Password:     conf.RedisPassword,
		DB:           conf.RedisDB,
		DialTimeout:  conf.RedisDialTimeout,
		ReadTimeout:  conf.RedisReadTimeout,
		WriteTimeout: conf.RedisWriteTimeout,
	})
	defer func() {
		if err := rc.Close(); err != nil {
			_ = l.Log("LEVEL", "WARN", "MESSAGE", err)
		}
	}()
	// The store may come up after the service. Requests fail until it does.
	if err := keyvalue.Ping(ctx, rc); err != nil {
		_ = l.Log("LEVEL", "WARN", "MESSAGE", err.Error())
	}

	var in *service.Instruments
	if conf.MetricsAddress != "" {
		i := newInstruments()
		in = &i
	}
	handler := newHandler(conf, keyvalue.NewRedisAdapter(rc), in, l)

	// Separate listening and serving to capture listen errors.
	ln, err := net.Listen("tcp", conf.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "unable to create TCP listener on %s", conf.ListenAddress)
	}
	var metricsLn net.Listener
	if conf.MetricsAddress != "" {
		if metricsLn, err = net.Listen("tcp", conf.MetricsAddress); err != nil {
			_ = ln.Close()
			return errors.Wrapf(err, "unable to create TCP listener on %s", conf.MetricsAddress)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	serveHTTP(ctx, group, ln, handler, l)
	if metricsLn != nil {
		m := gohttp.NewServeMux()
		m.Handle("/metrics", promhttp.Handler())
		serveHTTP(ctx, group, metricsLn, m, l)
	}
	return group.Wait()
}

// serveHTTP serves h on l in group until ctx is done.
func serveHTTP(ctx context.Context, group *errgroup.Group, l net.Listener, h gohttp.Handler, logger log.Logger) {
	server := &gohttp.Server{Handler: h}
	_ = logger.Log("LEVEL", "INFO", "MESSAGE", fmt.Sprintf("Listening on %s", l.Addr()))

	group.Go(func() error {
		err := server.Serve(l)
		if err == gohttp.ErrServerClosed {
			return nil
		}
		return errors.WithStack(err)
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = logger.Log("LEVEL", "WARN", "MESSAGE", err)
		}
		return nil
	})
}
