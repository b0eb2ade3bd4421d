package keyvalue

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// UnavailableError is returned when the store could not be reached or did
// not answer in time.
type UnavailableError struct {
	Op  string
	Key string
	Err error
}

func (u *UnavailableError) Error() string {
	return fmt.Sprintf("key value store unavailable: %s %q: %s", u.Op, u.Key, u.Err)
}

// Unwrap returns the underlying connection error.
func (u *UnavailableError) Unwrap() error {
	return u.Err
}

// IsUnavailable reports whether the cause of err is an UnavailableError.
func IsUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*UnavailableError)
	return ok
}

// Messages of go-redis errors that are not exported as values.
var unavailableMessages = []string{
	"redis: connection pool timeout",
	"redis: client is closed",
}

// connectionError reports whether err came from the connection to the store
// rather than from a reply sent by the store.
func connectionError(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{io.EOF, io.ErrUnexpectedEOF, context.DeadlineExceeded, context.Canceled} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, m := range unavailableMessages {
		if strings.HasPrefix(msg, m) {
			return true
		}
	}
	return false
}

// classify turns connection errors into UnavailableErrors and wraps anything
// else with a stack trace and message.
func classify(err error, op, key string) error {
	if err == nil {
		return nil
	}
	if connectionError(err) {
		return errors.WithStack(&UnavailableError{Op: op, Key: key, Err: err})
	}
	return errors.Wrapf(err, "failed to %s value for key %q", op, key)
}
