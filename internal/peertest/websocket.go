package peertest

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketPeer serves the same scripted exchange over a websocket, the
// way a relay in front of the daemon would.
type WebSocketPeer struct {
	t         testing.TB
	srv       *httptest.Server
	handler   Handler
	exchanges chan Exchange
	// Path is the only path that is upgraded; others get 404.
	Path string
	// Query holds the query of the last upgraded request.
	Query chan url.Values
}

func NewWebSocketPeer(t testing.TB, path string, handler Handler) *WebSocketPeer {
	t.Helper()

	p := &WebSocketPeer{
		t:         t,
		handler:   handler,
		exchanges: make(chan Exchange, 16),
		Path:      path,
		Query:     make(chan url.Values, 16),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, p.handleWebSocket)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *WebSocketPeer) Host() string {
	host, _, _ := net.SplitHostPort(p.srv.Listener.Addr().String())
	return host
}

func (p *WebSocketPeer) Port() int {
	return p.srv.Listener.Addr().(*net.TCPAddr).Port
}

func (p *WebSocketPeer) Next() Exchange {
	p.t.Helper()
	select {
	case ex := <-p.exchanges:
		return ex
	case <-time.After(exchangeWait):
		p.t.Fatalf("websocket peer: no exchange within %s", exchangeWait)
		return Exchange{}
	}
}

func (p *WebSocketPeer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.t.Logf("upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	select {
	case p.Query <- r.URL.Query():
	default:
	}

	var ex Exchange
	defer func() { p.exchanges <- ex }()

	_, data, err := conn.ReadMessage()
	if err != nil {
		ex.ReadErr = err
		return
	}
	ex.Request = string(data)

	reply := p.handler(ex.Request)
	ex.WriteErr = write(reply, func(chunk string) error {
		return conn.WriteMessage(websocket.BinaryMessage, []byte(chunk))
	})
	if reply.CloseWrite {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}

	conn.SetReadDeadline(time.Now().Add(exchangeWait))
	_, _, ex.TrailingErr = conn.ReadMessage()
	if websocket.IsCloseError(ex.TrailingErr, websocket.CloseNormalClosure) {
		ex.TrailingErr = nil
	}
}
