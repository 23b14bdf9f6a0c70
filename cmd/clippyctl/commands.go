package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rayanworkout/clippy/client"
	"github.com/Rayanworkout/clippy/internal/config"
	"github.com/Rayanworkout/clippy/internal/probe"
	"github.com/Rayanworkout/clippy/protocol"
)

const disconnectNotice = "Request sent, connection closed without reading the response."

func getHistoryCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get-history",
		Short: "Send GET_HISTORY to the UI port and print the raw response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, f, protocol.GetHistory, withPort(client.UIPort, client.DefaultBufferSize))
		},
	}
}

func sendCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send COMMAND",
		Short: "Send an arbitrary command and print the raw response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, f, args[0], withPort(client.UIPort, client.DefaultBufferSize))
		},
	}
}

func runSend(cmd *cobra.Command, f *rootFlags, request string, p preset) error {
	c, ep, err := f.newClient(cmd, p)
	if err != nil {
		return err
	}
	resp, err := c.SendRequest(cmd.Context(), request, ep)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Response:", resp)
	return nil
}

func sendDisconnectCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send-disconnect [COMMAND]",
		Short: "Send a command to the daemon port and drop the connection without reading",
		Long: "send-disconnect delivers COMMAND (GET_HISTORY followed by a newline by default) " +
			"and shuts the connection down right away, so the peer's reply hits a closed socket.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := protocol.GetHistory + "\n"
			if len(args) == 1 {
				request = args[0]
			}
			c, ep, err := f.newClient(cmd, withPort(client.DaemonPort, client.LargeBufferSize))
			if err != nil {
				return err
			}
			if err := c.SendRequestAndDisconnect(cmd.Context(), request, ep); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), disconnectNotice)
			return nil
		},
	}
}

func historyCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Fetch the daemon's clipboard history and print one entry per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ep, err := f.newClient(cmd, withPort(client.DaemonPort, client.LargeBufferSize))
			if err != nil {
				return err
			}
			resp, err := c.SendRequest(cmd.Context(), protocol.GetHistory, ep)
			if err != nil {
				return err
			}
			entries, err := protocol.ParseHistory(resp)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "History is empty.")
				return nil
			}
			for i, entry := range entries {
				fmt.Fprintf(out, "%d: %q\n", i, entry)
			}
			return nil
		},
	}
}

func resetHistoryCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-history",
		Short: "Ask the daemon to clear its clipboard history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ep, err := f.newClient(cmd, withPort(client.DaemonPort, client.DefaultBufferSize))
			if err != nil {
				return err
			}
			resp, err := c.SendRequest(cmd.Context(), protocol.ResetHistory, ep)
			if err != nil {
				return err
			}
			if err := protocol.CheckReply(resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
}

func probeCmd(f *rootFlags) *cobra.Command {
	var (
		command  string
		count    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Repeat one command sequentially and report latency percentiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ep, err := f.newClient(cmd, withPort(client.DaemonPort, client.LargeBufferSize))
			if err != nil {
				return err
			}
			summary, err := probe.New(c, ep, command, count, interval).Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, summary)
			if summary.LastErr != nil {
				fmt.Fprintln(out, "Last error:", summary.LastErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&command, "command", protocol.GetHistory, "command to repeat")
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of exchanges")
	cmd.Flags().DurationVar(&interval, "interval", 0, "pause between exchanges")
	return cmd
}

func configCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the clippyctl configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.settings(cmd, nil)
			if err != nil {
				return err
			}
			b, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})
	return cmd
}
