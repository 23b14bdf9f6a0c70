package client

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestOpErrorKind(t *testing.T) {
	err := opError("receive", "127.0.0.1:7878", timeoutError{})
	require.ErrorIs(t, err, ErrTimeout)
	require.NotErrorIs(t, err, ErrConnection)
	require.Equal(t, "receive 127.0.0.1:7878: timeout: i/o timeout", err.Error())

	err = opError("send", "127.0.0.1:7878", io.ErrClosedPipe)
	require.ErrorIs(t, err, ErrConnection)
	require.ErrorIs(t, err, io.ErrClosedPipe)

	err = opError("dial", "127.0.0.1:7878", errors.Wrap(context.DeadlineExceeded, "dial"))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestOpErrorKeepsFirstOp(t *testing.T) {
	inner := opError("dial", "127.0.0.1:1", io.EOF)
	outer := opError("send", "127.0.0.1:1", errors.Wrap(inner, "wrapped"))

	var oe *OpError
	require.True(t, errors.As(outer, &oe))
	require.Equal(t, "dial", oe.Op)
}

func TestDecodeErrorMessage(t *testing.T) {
	err := &OpError{Op: "decode", Addr: "127.0.0.1:7878", Kind: ErrDecode}
	require.Equal(t, "decode 127.0.0.1:7878: response is not valid utf-8", err.Error())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.Equal(t, DefaultBufferSize, cfg.BufferSize)
	require.Equal(t, TCPTransport{}, cfg.Transport)
	require.NotNil(t, cfg.Logger)
}
