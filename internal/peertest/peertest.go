// Package peertest provides scripted peers for exercising the request
// client: they accept connections, read one request, answer through a
// Handler and record what happened on the wire.
package peertest

import (
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

const (
	readBufferSize = 512

	// exchangeWait bounds how long Next waits for the peer to finish.
	exchangeWait = 5 * time.Second
)

// Reply is what the peer writes back. Each chunk is a separate write, with
// Pause between chunks. Repeat re-sends the whole reply until a write
// fails, which is how a peer notices a client that went away.
type Reply struct {
	Chunks []string
	Pause  time.Duration
	Repeat int
	// CloseWrite shuts down the peer's write side once the reply is out,
	// the way the daemon ends a history reply.
	CloseWrite bool
}

// Text is a single-write reply.
func Text(s string) Reply {
	return Reply{Chunks: []string{s}}
}

// Handler picks the reply for a request.
type Handler func(request string) Reply

// Static answers every request with the same text.
func Static(s string) Handler {
	return func(string) Reply { return Text(s) }
}

// Exchange records one accepted connection.
type Exchange struct {
	Request string
	// ReadErr is set when the request itself could not be read.
	ReadErr error
	// WriteErr is the first error hit while writing the reply.
	WriteErr error
	// TrailingErr is the result of reading again after the request; a
	// client that shut down its write side yields io.EOF.
	TrailingErr error
}

// Failed reports whether the peer saw the client go away: any read or
// write error other than a clean EOF after the request.
func (ex Exchange) Failed() bool {
	return ex.ReadErr != nil || ex.WriteErr != nil ||
		(ex.TrailingErr != nil && ex.TrailingErr != io.EOF)
}

// Peer is a TCP listener on a random loopback port.
type Peer struct {
	t         testing.TB
	ln        net.Listener
	handler   Handler
	exchanges chan Exchange
	wg        sync.WaitGroup
}

// NewTCPPeer starts a peer; it is stopped by t.Cleanup.
func NewTCPPeer(t testing.TB, handler Handler) *Peer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("tcp listen error: %v", err)
	}
	p := &Peer{
		t:         t,
		ln:        ln,
		handler:   handler,
		exchanges: make(chan Exchange, 16),
	}
	p.wg.Add(1)
	go p.serve()
	t.Cleanup(p.Close)
	return p
}

func (p *Peer) Host() string { return "127.0.0.1" }

func (p *Peer) Port() int {
	return p.ln.Addr().(*net.TCPAddr).Port
}

func (p *Peer) Addr() string {
	return net.JoinHostPort(p.Host(), strconv.Itoa(p.Port()))
}

// Next returns the next finished exchange or fails the test.
func (p *Peer) Next() Exchange {
	p.t.Helper()
	select {
	case ex := <-p.exchanges:
		return ex
	case <-time.After(exchangeWait):
		p.t.Fatalf("peer %s: no exchange within %s", p.Addr(), exchangeWait)
		return Exchange{}
	}
}

// Pending reports how many finished exchanges have not been consumed.
func (p *Peer) Pending() int {
	return len(p.exchanges)
}

func (p *Peer) Close() {
	p.ln.Close()
	p.wg.Wait()
}

func (p *Peer) serve() {
	defer p.wg.Done()
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.exchanges <- p.handle(conn)
		}()
	}
}

func (p *Peer) handle(conn net.Conn) Exchange {
	defer conn.Close()

	var ex Exchange
	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if n == 0 && err != nil && err != io.EOF {
		ex.ReadErr = err
		return ex
	}
	ex.Request = string(buf[:n])

	reply := p.handler(ex.Request)
	ex.WriteErr = write(reply, func(chunk string) error {
		_, err := conn.Write([]byte(chunk))
		return err
	})
	if reply.CloseWrite {
		conn.(*net.TCPConn).CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(exchangeWait))
	_, ex.TrailingErr = conn.Read(buf)
	return ex
}

func write(reply Reply, send func(string) error) error {
	rounds := reply.Repeat
	if rounds < 1 {
		rounds = 1
	}
	for r := 0; r < rounds; r++ {
		for i, chunk := range reply.Chunks {
			if (r > 0 || i > 0) && reply.Pause > 0 {
				time.Sleep(reply.Pause)
			}
			if err := send(chunk); err != nil {
				return err
			}
		}
	}
	return nil
}

// FreePort returns a loopback port nothing is listening on.
func FreePort(t testing.TB) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("tcp listen error: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}
