// Package http makes the greeter service available over HTTP.
package http

import (
	"context"
	"fmt"
	gohttp "net/http"

	"github.com/go-kit/kit/endpoint"
	"github.com/pkg/errors"

	"github.com/go-kit/kit/transport/http"
)

// HandlerConfig contains the configuration of the HTTP handler.
type HandlerConfig struct {
	// Debug writes errors, including their stack traces, into 500 responses.
	// It exposes internals and must not be used in production.
	Debug bool
	// Options are keyed by endpoint name, for example "Greet".
	Options map[string][]http.ServerOption
}

// NewGreeterHTTPHandler returns a handler that makes the greeter endpoint
// available via HTTP at GET /.
func NewGreeterHTTPHandler(endpoint endpoint.Endpoint, conf HandlerConfig) gohttp.Handler {
	options := conf.Options
	if options == nil {
		options = make(map[string][]http.ServerOption)
	}
	m := gohttp.NewServeMux()
	makeGreetHandler(m, endpoint, conf.Debug, options["Greet"]...)
	return m
}

// writeError writes a 500 response for err.
func writeError(w gohttp.ResponseWriter, err error, debug bool) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(gohttp.StatusInternalServerError)
	if debug {
		_, _ = fmt.Fprintf(w, "%+v\n", err)
		return
	}
	_, _ = fmt.Fprintln(w, gohttp.StatusText(gohttp.StatusInternalServerError))
}

func makeErrorEncoder(debug bool) http.ErrorEncoder {
	return func(_ context.Context, err error, w gohttp.ResponseWriter) {
		writeError(w, err, debug)
	}
}

func makeGreetResponseEncoder(debug bool) http.EncodeResponseFunc {
	return func(_ context.Context, w gohttp.ResponseWriter, r interface{}) error {
		if v, ok := r.(endpoint.Failer); ok && v.Failed() != nil {
			writeError(w, v.Failed(), debug)
			return nil
		}
		g, ok := r.(fmt.Stringer)
		if !ok {
			return errors.Errorf("unexpected response type %T", r)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err := fmt.Fprint(w, g.String())
		return errors.WithStack(err)
	}
}

func decodeGreetRequest(_ context.Context, _ *gohttp.Request) (interface{}, error) {
	return nil, nil
}

func makeGreetHandler(m *gohttp.ServeMux, endpoint endpoint.Endpoint, debug bool, options ...http.ServerOption) {
	options = append([]http.ServerOption{http.ServerErrorEncoder(makeErrorEncoder(debug))}, options...)
	handler := http.NewServer(endpoint,
		decodeGreetRequest,
		makeGreetResponseEncoder(debug),
		options...)
	hf := func(w gohttp.ResponseWriter, r *gohttp.Request) {
		if r.URL.Path != "/" {
			gohttp.NotFound(w, r)
			return
		}
		if r.Method != gohttp.MethodGet {
			w.Header().Set("Allow", gohttp.MethodGet)
			w.WriteHeader(gohttp.StatusMethodNotAllowed)
			_, _ = fmt.Fprintf(w, "Invalid request method %s", r.Method)
			return
		}
		handler.ServeHTTP(w, r)
	}
	m.Handle("/", gohttp.HandlerFunc(hf))
}
