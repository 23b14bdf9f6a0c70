package client

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	WS  = "ws"
	WSS = "wss"

	closeGrace = time.Second
)

// WebSocketTransport reaches a peer that is exposed behind a websocket
// relay. Each request is one binary message and the response is the next
// data message, truncated to the receive buffer.
type WebSocketTransport struct {
	Scheme string // ws or wss, defaults to ws
	Path   string
	Query  url.Values
	Dialer *websocket.Dialer
}

func (t WebSocketTransport) URL(ep Endpoint) string {
	scheme := t.Scheme
	if scheme == "" {
		scheme = WS
	}
	u := url.URL{
		Scheme: scheme,
		Host:   ep.Address(),
		Path:   t.Path,
	}
	if len(t.Query) > 0 {
		u.RawQuery = t.Query.Encode()
	}
	return u.String()
}

func (t WebSocketTransport) Dial(ctx context.Context, ep Endpoint) (Conn, error) {
	if t.Scheme != "" && t.Scheme != WS && t.Scheme != WSS {
		return nil, errors.Errorf("unsupported websocket scheme %q", t.Scheme)
	}
	d := t.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}
	ws, resp, err := d.DialContext(ctx, t.URL(ep), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to websocket")
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Send(p []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, p)
}

// Receive skips control frames and reads at most len(p) bytes of the next
// data message. The rest of the message is dropped with the connection.
func (c *wsConn) Receive(p []byte) (int, error) {
	for {
		msgType, r, err := c.ws.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}
		n, err := io.ReadFull(r, p)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = nil
		}
		return n, err
	}
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) Close() error {
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))
	return c.ws.Close()
}

// Abort drops the underlying connection without a close frame.
func (c *wsConn) Abort(reset bool) error {
	if tc, ok := c.ws.UnderlyingConn().(*net.TCPConn); ok && reset {
		tc.SetLinger(0)
	}
	return c.ws.Close()
}
