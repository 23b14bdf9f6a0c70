package main

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Rayanworkout/clippy/client"
	"github.com/Rayanworkout/clippy/internal/config"
)

type rootFlags struct {
	configFile string
	host       string
	port       int
	bufferSize int
	timeout    time.Duration
	reset      bool
	transport  string
	wsPath     string
	logLevel   string
}

// preset adjusts the built-in defaults for one subcommand. Keys set in a
// config file override them; flags override both.
type preset func(*config.Config)

func withPort(port, bufferSize int) preset {
	return func(cfg *config.Config) {
		cfg.Endpoint.Port = port
		cfg.Client.BufferSize = bufferSize
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:          "clippyctl",
		SilenceUsage: true,
		Short:        "Send one command to the clippy daemon or UI",
		Long: "clippyctl opens a fresh TCP connection, sends a single text command, " +
			"reads one buffer of response and prints it.",
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "TOML config file")
	pf.StringVar(&f.host, "host", client.DefaultHost, "peer host")
	pf.IntVarP(&f.port, "port", "p", client.UIPort, "peer port")
	pf.IntVar(&f.bufferSize, "buffer-size", client.DefaultBufferSize, "maximum response bytes taken from the single read")
	pf.DurationVar(&f.timeout, "timeout", 0, "dial/read/write timeout, 0 blocks forever")
	pf.BoolVar(&f.reset, "reset", false, "send a RST instead of a FIN when disconnecting")
	pf.StringVar(&f.transport, "transport", config.TransportTCP, "tcp or websocket")
	pf.StringVar(&f.wsPath, "ws-path", config.DefaultWebSocketPath, "websocket relay path")
	pf.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn, error or disabled")

	rootCmd.AddCommand(
		getHistoryCmd(f),
		sendCmd(f),
		sendDisconnectCmd(f),
		historyCmd(f),
		resetHistoryCmd(f),
		probeCmd(f),
		configCmd(f),
		versionCmd(),
	)
	return rootCmd
}

// settings resolves defaults, the optional config file and flags, in that
// order of increasing precedence.
func (f *rootFlags) settings(cmd *cobra.Command, p preset) (config.Config, error) {
	cfg := config.Default()
	if p != nil {
		p(&cfg)
	}
	if f.configFile != "" {
		loaded, err := config.LoadInto(f.configFile, cfg)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	fs := cmd.Flags()
	if fs.Changed("host") {
		cfg.Endpoint.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Endpoint.Port = f.port
	}
	if fs.Changed("buffer-size") {
		cfg.Client.BufferSize = f.bufferSize
	}
	if fs.Changed("timeout") {
		cfg.Client.Timeout = f.timeout.String()
	}
	if fs.Changed("reset") {
		cfg.Client.ResetOnDisconnect = f.reset
	}
	if fs.Changed("transport") {
		cfg.Client.Transport = f.transport
	}
	if fs.Changed("ws-path") {
		cfg.WebSocket.Path = f.wsPath
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

func (f *rootFlags) newClient(cmd *cobra.Command, p preset) (*client.Client, client.Endpoint, error) {
	cfg, err := f.settings(cmd, p)
	if err != nil {
		return nil, client.Endpoint{}, err
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, client.Endpoint{}, err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(level).
		With().Timestamp().
		Logger()

	cc, err := cfg.ClientConfig(&logger)
	if err != nil {
		return nil, client.Endpoint{}, err
	}
	return client.New(cc), cfg.ClientEndpoint(), nil
}

func versionS() string {
	return fmt.Sprintf("clippyctl (C) 2024. %v, version %v-%v", path.Base(os.Args[0]), version, commit)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionS())
		},
	}
}
