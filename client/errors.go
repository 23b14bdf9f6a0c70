package client

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

var (
	// ErrConnection covers refused, unreachable and reset connections.
	ErrConnection = errors.New("connection error")
	// ErrTimeout is only returned when a timeout or context deadline was set.
	ErrTimeout = errors.New("timeout")
	// ErrDecode means the response bytes are not valid UTF-8.
	ErrDecode = errors.New("response is not valid utf-8")

	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// OpError describes a failed step of an exchange. Kind is one of the
// sentinel errors above, so callers can match with errors.Is.
type OpError struct {
	Op   string
	Addr string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Addr, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func (e *OpError) Is(target error) bool { return target == e.Kind }

func opError(op, addr string, err error) error {
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, Addr: addr, Kind: kindOf(err), Err: err}
}

func kindOf(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return ErrConnection
}
