// Package config loads the clippyctl TOML configuration and turns it into
// client settings.
package config

import (
	"fmt"
	"io/ioutil"
	"net/url"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Rayanworkout/clippy/client"
)

const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"

	DefaultWebSocketPath = "/ws"
	DefaultLogLevel      = "warn"
)

type Config struct {
	Endpoint  EndpointConfig  `toml:"endpoint"`
	Client    ClientConfig    `toml:"client"`
	WebSocket WebSocketConfig `toml:"websocket"`
	Log       LogConfig       `toml:"log"`
}

type EndpointConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type ClientConfig struct {
	BufferSize        int    `toml:"buffer_size"`
	Timeout           string `toml:"timeout"`
	ResetOnDisconnect bool   `toml:"reset_on_disconnect"`
	Transport         string `toml:"transport"`
}

type WebSocketConfig struct {
	Scheme string            `toml:"scheme"`
	Path   string            `toml:"path"`
	Query  map[string]string `toml:"query,omitempty"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default targets the UI port on loopback over plain TCP, with a 1024 byte
// receive buffer and no timeout.
func Default() Config {
	return Config{
		Endpoint: EndpointConfig{
			Host: client.DefaultHost,
			Port: client.UIPort,
		},
		Client: ClientConfig{
			BufferSize: client.DefaultBufferSize,
			Transport:  TransportTCP,
		},
		WebSocket: WebSocketConfig{
			Scheme: client.WS,
			Path:   DefaultWebSocketPath,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// Load reads path on top of Default.
func Load(path string) (Config, error) {
	return LoadInto(path, Default())
}

// LoadInto reads path on top of base: only the keys present in the file
// replace the values of base.
func LoadInto(path string, base Config) (Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return ParseInto(b, base)
}

func Parse(b []byte) (Config, error) {
	return ParseInto(b, Default())
}

func ParseInto(b []byte, base Config) (Config, error) {
	tree, err := toml.LoadBytes(b)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	var file Config
	if err := tree.Unmarshal(&file); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}

	cfg := base
	for _, o := range []struct {
		key   string
		apply func()
	}{
		{"endpoint.host", func() { cfg.Endpoint.Host = file.Endpoint.Host }},
		{"endpoint.port", func() { cfg.Endpoint.Port = file.Endpoint.Port }},
		{"client.buffer_size", func() { cfg.Client.BufferSize = file.Client.BufferSize }},
		{"client.timeout", func() { cfg.Client.Timeout = file.Client.Timeout }},
		{"client.reset_on_disconnect", func() { cfg.Client.ResetOnDisconnect = file.Client.ResetOnDisconnect }},
		{"client.transport", func() { cfg.Client.Transport = file.Client.Transport }},
		{"websocket.scheme", func() { cfg.WebSocket.Scheme = file.WebSocket.Scheme }},
		{"websocket.path", func() { cfg.WebSocket.Path = file.WebSocket.Path }},
		{"websocket.query", func() { cfg.WebSocket.Query = file.WebSocket.Query }},
		{"log.level", func() { cfg.Log.Level = file.Log.Level }},
	} {
		if tree.Has(o.key) {
			o.apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Dump renders cfg as TOML.
func Dump(cfg Config) ([]byte, error) {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return b, nil
}

func (c Config) Validate() error {
	if err := c.ClientEndpoint().Validate(); err != nil {
		return err
	}
	if c.Client.BufferSize < 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", c.Client.BufferSize)
	}
	if _, err := c.timeout(); err != nil {
		return err
	}
	if err := checkStringAccepted("client.transport", c.Client.Transport,
		[]string{TransportTCP, TransportWebSocket}); err != nil {
		return err
	}
	if err := checkStringAccepted("websocket.scheme", c.WebSocket.Scheme,
		[]string{client.WS, client.WSS}); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("unknown log level: %v", c.Log.Level)
	}
	return nil
}

func checkStringAccepted(field string, val string, accepts []string) error {
	for _, accept := range accepts {
		if val == accept {
			return nil
		}
	}
	acceptsStr := strings.Join(accepts, ", ")
	return fmt.Errorf("unknown value for %s: %s (%v)", field, val, acceptsStr)
}

func (c Config) timeout() (time.Duration, error) {
	if c.Client.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Client.Timeout)
	if err != nil {
		return 0, errors.Wrap(err, "client.timeout")
	}
	if d < 0 {
		return 0, fmt.Errorf("client.timeout must not be negative, got %s", d)
	}
	return d, nil
}

func (c Config) ClientEndpoint() client.Endpoint {
	return client.Endpoint{Host: c.Endpoint.Host, Port: c.Endpoint.Port}
}

// ClientConfig builds the client settings. logger may be nil.
func (c Config) ClientConfig(logger *zerolog.Logger) (client.Config, error) {
	if err := c.Validate(); err != nil {
		return client.Config{}, err
	}
	timeout, _ := c.timeout()

	cfg := client.DefaultConfig()
	cfg.BufferSize = c.Client.BufferSize
	cfg.Timeout = timeout
	cfg.ResetOnDisconnect = c.Client.ResetOnDisconnect
	cfg.Logger = logger

	if c.Client.Transport == TransportWebSocket {
		query := url.Values{}
		for k, v := range c.WebSocket.Query {
			query.Set(k, v)
		}
		cfg.Transport = client.WebSocketTransport{
			Scheme: c.WebSocket.Scheme,
			Path:   c.WebSocket.Path,
			Query:  query,
		}
	}
	return cfg, nil
}
