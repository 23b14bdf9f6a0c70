package probe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rayanworkout/clippy/client"
	"github.com/Rayanworkout/clippy/internal/peertest"
)

type scriptedRequester struct {
	responses []string
	errs      []error
	calls     int
}

func (r *scriptedRequester) SendRequest(_ context.Context, _ string, _ client.Endpoint) (string, error) {
	i := r.calls
	r.calls++
	var err error
	if i < len(r.errs) {
		err = r.errs[i]
	}
	if err != nil {
		return "", err
	}
	return r.responses[i%len(r.responses)], nil
}

func TestProbeAgainstPeer(t *testing.T) {
	peer := peertest.NewTCPPeer(t, peertest.Static("[]\n"))
	ep := client.Endpoint{Host: peer.Host(), Port: peer.Port()}

	p := New(client.New(client.DefaultConfig()), ep, "GET_HISTORY", 5, 0)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 5, summary.Requests)
	require.Zero(t, summary.Errors)
	require.True(t, summary.Identical)
	require.EqualValues(t, 5, summary.Histogram.TotalCount())
	require.True(t, summary.Max >= summary.P50)

	for i := 0; i < 5; i++ {
		require.Equal(t, "GET_HISTORY", peer.Next().Request)
	}
}

func TestProbeDetectsDifferentResponses(t *testing.T) {
	r := &scriptedRequester{responses: []string{"a", "a", "b"}}
	summary, err := New(r, client.DefaultEndpoint(client.DaemonPort), "GET_HISTORY", 3, 0).Run(context.Background())
	require.NoError(t, err)
	require.False(t, summary.Identical)
	require.Equal(t, 3, r.calls)
}

func TestProbeCountsErrors(t *testing.T) {
	boom := errors.New("boom")
	r := &scriptedRequester{responses: []string{"ok"}, errs: []error{boom, nil, boom}}
	summary, err := New(r, client.DefaultEndpoint(client.DaemonPort), "GET_HISTORY", 4, 0).Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, summary.Requests)
	require.EqualValues(t, 2, summary.Errors)
	require.Equal(t, boom, summary.LastErr)
	require.True(t, summary.Identical)
	require.Contains(t, summary.String(), "Errors: 2")
}

func TestProbeStopsOnCancel(t *testing.T) {
	r := &scriptedRequester{responses: []string{"ok"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(r, client.DefaultEndpoint(client.DaemonPort), "GET_HISTORY", 10, time.Millisecond).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, r.calls)
}

func TestProbeAgainstMissingPeer(t *testing.T) {
	ep := client.DefaultEndpoint(peertest.FreePort(t))
	summary, err := New(client.New(client.DefaultConfig()), ep, "GET_HISTORY", 2, 0).Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.Errors)
	require.ErrorIs(t, summary.LastErr, client.ErrConnection)
	require.Equal(t, fmt.Sprint(summary), summary.String())
}
