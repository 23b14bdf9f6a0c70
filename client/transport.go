package client

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Transport opens the connection a single exchange runs over.
type Transport interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
}

// Conn is a connection owned by exactly one exchange.
type Conn interface {
	// Send writes all of p or fails.
	Send(p []byte) error
	// Receive performs a single read into p.
	Receive(p []byte) (int, error)
	SetDeadline(t time.Time) error
	// Close shuts down both directions and releases the connection.
	Close() error
	// Abort tears the connection down without reading anything. With
	// reset set the peer is sent a RST rather than a FIN.
	Abort(reset bool) error
}

// network is IPv4 only; host names resolve to their A records.
const network = "tcp4"

// TCPTransport dials plain TCP connections.
type TCPTransport struct {
	// Dialer is optional.
	Dialer *net.Dialer
}

func (t TCPTransport) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	d := t.Dialer
	if d == nil {
		d = &net.Dialer{}
	}
	nc, err := d.DialContext(ctx, network, ep.Address())
	if err != nil {
		return nil, err
	}
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		nc.Close()
		return nil, errors.Errorf("unexpected connection type %T", nc)
	}
	return &tcpConn{conn: tc}, nil
}

type tcpConn struct {
	conn *net.TCPConn
}

// Send relies on net.Conn.Write, which only returns early on error, so
// partial writes never leak to the caller.
func (c *tcpConn) Send(p []byte) error {
	_, err := c.conn.Write(p)
	return err
}

func (c *tcpConn) Receive(p []byte) (int, error) {
	return c.conn.Read(p)
}

func (c *tcpConn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Close half-closes both directions before closing. Shutdown errors are
// ignored: the peer may already be gone.
func (c *tcpConn) Close() error {
	c.conn.CloseWrite()
	c.conn.CloseRead()
	return c.conn.Close()
}

func (c *tcpConn) Abort(reset bool) error {
	if reset {
		if err := c.conn.SetLinger(0); err != nil {
			c.conn.Close()
			return err
		}
		return c.conn.Close()
	}
	c.conn.CloseRead()
	c.conn.CloseWrite()
	return c.conn.Close()
}
