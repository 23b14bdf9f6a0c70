// Package client sends one text command to a clippy peer over a fresh
// connection and returns whatever arrives in a single read.
package client

import (
	"context"
	"io"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client runs request/response exchanges. Each call owns its own
// connection; nothing is shared between calls.
type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg.withDefaults()}
}

func (c *Client) Config() Config {
	return c.cfg
}

// SendRequest writes request to ep, performs exactly one read of at most
// BufferSize bytes and returns it as text. A response longer than the
// buffer, or one the peer splits across several writes, comes back
// truncated. An orderly close by the peer before any byte arrives yields
// an empty response.
func (c *Client) SendRequest(ctx context.Context, request string, ep Endpoint) (response string, err error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	conn, logger, err := c.open(ctx, ep)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("close failed")
		}
	}()

	addr := ep.Address()
	if err := conn.Send([]byte(request)); err != nil {
		return "", opError("send", addr, err)
	}
	logger.Debug().Int("bytes", len(request)).Msg("request sent")

	buf := make([]byte, c.cfg.BufferSize)
	n, err := conn.Receive(buf)
	if n == 0 && err != nil && !errors.Is(err, io.EOF) {
		return "", opError("receive", addr, err)
	}
	if !utf8.Valid(buf[:n]) {
		return "", &OpError{Op: "decode", Addr: addr, Kind: ErrDecode}
	}
	logger.Debug().Int("bytes", n).Msg("response received")

	return string(buf[:n]), nil
}

// SendRequestAndDisconnect writes request to ep and immediately tears the
// connection down without reading. A peer that later tries to answer
// sees a reset or broken pipe.
func (c *Client) SendRequestAndDisconnect(ctx context.Context, request string, ep Endpoint) (err error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	conn, logger, err := c.open(ctx, ep)
	if err != nil {
		return err
	}

	addr := ep.Address()
	defer func() {
		aerr := conn.Abort(c.cfg.ResetOnDisconnect)
		if aerr != nil && err == nil {
			err = opError("disconnect", addr, aerr)
			return
		}
		logger.Debug().Bool("reset", c.cfg.ResetOnDisconnect).Msg("disconnected")
	}()

	if err := conn.Send([]byte(request)); err != nil {
		return opError("send", addr, err)
	}
	logger.Debug().Int("bytes", len(request)).Msg("request sent")

	return nil
}

func (c *Client) open(ctx context.Context, ep Endpoint) (Conn, zerolog.Logger, error) {
	if err := ep.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}

	addr := ep.Address()
	logger := c.cfg.Logger.With().
		Str("exchange", uuid.New().String()).
		Str("addr", addr).
		Logger()

	conn, err := c.cfg.Transport.Dial(ctx, ep)
	if err != nil {
		return nil, logger, opError("dial", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, logger, opError("dial", addr, err)
		}
	}
	logger.Debug().Msg("connected")

	return conn, logger, nil
}

// SendRequest runs a single exchange with DefaultConfig.
func SendRequest(ctx context.Context, request string, ep Endpoint) (string, error) {
	return New(DefaultConfig()).SendRequest(ctx, request, ep)
}

// SendRequestAndDisconnect sends request with DefaultConfig and drops the
// connection without reading.
func SendRequestAndDisconnect(ctx context.Context, request string, ep Endpoint) error {
	return New(DefaultConfig()).SendRequestAndDisconnect(ctx, request, ep)
}
