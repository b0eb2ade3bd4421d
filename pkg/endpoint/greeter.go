package endpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/rwool/hitcounter/pkg/service"
)

// GreetRequest is the (empty) request for a greeting.
type GreetRequest struct{}

// GreetResponse contains a Greeting and an error to indicate a failure in the
// business logic.
type GreetResponse struct {
	service.Greeting
	e error
}

// Failed indicates if there was a business logic failure.
func (g GreetResponse) Failed() error {
	return g.e
}

// Ensure GreetResponse can report business logic failures to transports.
var _ endpoint.Failer = GreetResponse{}

// MakeGreetEndpoint creates a Go kit endpoint for greeting visitors.
//
// No timeout is added here. Calls to the store are bounded by the timeouts of
// its connection.
func MakeGreetEndpoint(s service.GreeterService) endpoint.Endpoint {
	return func(ctx context.Context, _ interface{}) (interface{}, error) {
		g, err := s.Greet(ctx)
		return GreetResponse{
			Greeting: g,
			e:        err,
		}, nil
	}
}
