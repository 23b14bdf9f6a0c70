package client

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultHost = "127.0.0.1"

	// UIPort is where the UI side of clippy listens for history pushes.
	UIPort = 7878
	// DaemonPort is where the clipboard daemon accepts commands.
	DaemonPort = 7879

	DefaultBufferSize = 1024
	LargeBufferSize   = 4096
)

// Endpoint is the host/port pair a request is sent to.
type Endpoint struct {
	Host string
	Port int
}

// DefaultEndpoint returns the loopback endpoint on the given port.
func DefaultEndpoint(port int) Endpoint {
	return Endpoint{Host: DefaultHost, Port: port}
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}

// Validate checks that the endpoint can be dialed at all. It does not
// resolve the host.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return errors.Wrap(ErrInvalidEndpoint, "empty host")
	}
	if e.Port < 1 || e.Port > 65535 {
		return errors.Wrapf(ErrInvalidEndpoint, "port %d out of range", e.Port)
	}
	return nil
}

// Config controls how a Client talks to its peer.
type Config struct {
	// BufferSize caps the number of bytes taken from the single read.
	BufferSize int

	// Timeout bounds dial, write and read. Zero blocks forever.
	Timeout time.Duration

	// ResetOnDisconnect makes SendRequestAndDisconnect drop the connection
	// with SO_LINGER=0 so the peer sees a RST instead of a FIN.
	ResetOnDisconnect bool

	// Transport defaults to plain TCP.
	Transport Transport

	// Logger receives one debug line per exchange. Nil disables logging.
	Logger *zerolog.Logger
}

// DefaultConfig returns a config with a 1024 byte buffer, no timeout,
// plain TCP and a disabled logger.
func DefaultConfig() Config {
	return Config{
		BufferSize: DefaultBufferSize,
		Transport:  TCPTransport{},
	}
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Transport == nil {
		c.Transport = TCPTransport{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
