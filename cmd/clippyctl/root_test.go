package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Rayanworkout/clippy/client"
	"github.com/Rayanworkout/clippy/internal/peertest"
	"github.com/Rayanworkout/clippy/protocol"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func portArg(p *peertest.Peer) string {
	return strconv.Itoa(p.Port())
}

func TestGetHistory(t *testing.T) {
	peer := peertest.NewTCPPeer(t, peertest.Static("HISTORY: []"))

	out, err := run(t, "get-history", "--port", portArg(peer))
	require.NoError(t, err)
	require.Equal(t, "Response: HISTORY: []\n", out)
	require.Equal(t, protocol.GetHistory, peer.Next().Request)
}

func TestSend(t *testing.T) {
	peer := peertest.NewTCPPeer(t, func(req string) peertest.Reply {
		if req == protocol.ResetHistory {
			return peertest.Text(protocol.ReplyOK)
		}
		return peertest.Text(protocol.ReplyBadRequest)
	})

	out, err := run(t, "send", "CLEAR_HISTORY", "--port", portArg(peer))
	require.NoError(t, err)
	require.Equal(t, "Response: BAD_REQUEST\n", out)
}

func TestSendDisconnect(t *testing.T) {
	peer := peertest.NewTCPPeer(t, peertest.Static("[]\n"))

	out, err := run(t, "send-disconnect", "--port", portArg(peer))
	require.NoError(t, err)
	require.Equal(t, disconnectNotice+"\n", out)
	require.Equal(t, protocol.GetHistory+"\n", peer.Next().Request)
}

func TestHistory(t *testing.T) {
	peer := peertest.NewTCPPeer(t, func(string) peertest.Reply {
		return peertest.Reply{
			Chunks:     []string{protocol.FormatHistory([]string{"second", "first\nline"})},
			CloseWrite: true,
		}
	})

	out, err := run(t, "history", "--port", portArg(peer))
	require.NoError(t, err)
	require.Equal(t, "0: \"second\"\n1: \"first\\nline\"\n", out)
}

func TestHistoryEmpty(t *testing.T) {
	peer := peertest.NewTCPPeer(t, peertest.Static("[]\n"))

	out, err := run(t, "history", "--port", portArg(peer))
	require.NoError(t, err)
	require.Equal(t, "History is empty.\n", out)
}

func TestResetHistory(t *testing.T) {
	peer := peertest.NewTCPPeer(t, peertest.Static(protocol.ReplyOK))

	out, err := run(t, "reset-history", "--port", portArg(peer))
	require.NoError(t, err)
	require.Equal(t, "History cleared.\n", out)
	require.Equal(t, protocol.ResetHistory, peer.Next().Request)

	bad := peertest.NewTCPPeer(t, peertest.Static(protocol.ReplyBadRequest))
	_, err = run(t, "reset-history", "--port", portArg(bad))
	require.ErrorIs(t, err, protocol.ErrBadRequest)
}

func TestProbe(t *testing.T) {
	peer := peertest.NewTCPPeer(t, peertest.Static("[]\n"))

	out, err := run(t, "probe", "--port", portArg(peer), "-n", "3")
	require.NoError(t, err)
	require.Contains(t, out, "Requests: 3")
	require.Contains(t, out, "Identical: true")
}

func TestConnectionRefused(t *testing.T) {
	_, err := run(t, "get-history", "--port", strconv.Itoa(peertest.FreePort(t)))
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection error")
}

func TestConfigFile(t *testing.T) {
	peer := peertest.NewTCPPeer(t, peertest.Static("from config"))

	dir, err := ioutil.TempDir("", "clippyctl")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "clippy.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte("[endpoint]\nport = "+portArg(peer)+"\n"), 0644))

	out, err := run(t, "send", "GET_HISTORY", "--config", path)
	require.NoError(t, err)
	require.Equal(t, "Response: from config\n", out)

	out, err = run(t, "config", "dump", "--config", path, "--buffer-size", "4096")
	require.NoError(t, err)
	require.Contains(t, out, "port = "+portArg(peer))
	require.Contains(t, out, "buffer_size = 4096")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "clippyctl")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "clippy.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte(body), 0644))
	return path
}

func TestConfigFileKeepsSubcommandDefaults(t *testing.T) {
	path := writeConfig(t, "[log]\nlevel = \"error\"\n")
	f := &rootFlags{configFile: path}

	cfg, err := f.settings(sendDisconnectCmd(f), withPort(client.DaemonPort, client.LargeBufferSize))
	require.NoError(t, err)
	require.Equal(t, client.DaemonPort, cfg.Endpoint.Port)
	require.Equal(t, client.LargeBufferSize, cfg.Client.BufferSize)
	require.Equal(t, "error", cfg.Log.Level)

	path = writeConfig(t, "[endpoint]\nport = 9000\n")
	f = &rootFlags{configFile: path}
	cfg, err = f.settings(historyCmd(f), withPort(client.DaemonPort, client.LargeBufferSize))
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Endpoint.Port)
	require.Equal(t, client.LargeBufferSize, cfg.Client.BufferSize)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	peer := peertest.NewTCPPeer(t, peertest.Static("[]\n"))
	path := writeConfig(t, "[endpoint]\nport = 1\n")

	out, err := run(t, "send-disconnect", "--config", path, "--port", portArg(peer))
	require.NoError(t, err)
	require.Equal(t, disconnectNotice+"\n", out)
	require.Equal(t, protocol.GetHistory+"\n", peer.Next().Request)
}

func TestInvalidFlags(t *testing.T) {
	_, err := run(t, "get-history", "--transport", "udp")
	require.Error(t, err)

	_, err = run(t, "send")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, version)
}
