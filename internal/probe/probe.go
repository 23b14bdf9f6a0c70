/*
Package probe issues the same command to a clippy peer a number of times,
one exchange after the other, and records the latency distribution.
*/
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/codahale/hdrhistogram"

	"github.com/Rayanworkout/clippy/client"
)

const (
	maxRecordableLatencyNS = 300000000000
	sigFigs                = 5
)

// Requester performs one synchronous exchange with the peer.
type Requester interface {
	SendRequest(ctx context.Context, request string, ep client.Endpoint) (string, error)
}

// Summary contains the results of a Probe run.
type Summary struct {
	Requests  uint64
	Errors    uint64
	Elapsed   time.Duration
	P50       time.Duration
	P99       time.Duration
	Max       time.Duration
	Identical bool
	LastErr   error
	Histogram *hdrhistogram.Histogram
}

func (s *Summary) String() string {
	return fmt.Sprintf("{Requests: %d, Errors: %d, Elapsed: %s, P50: %s, P99: %s, Max: %s, Identical: %t}",
		s.Requests, s.Errors, s.Elapsed, s.P50, s.P99, s.Max, s.Identical)
}

// Probe sends Command to Endpoint Count times, waiting Interval between
// exchanges.
type Probe struct {
	requester Requester
	endpoint  client.Endpoint
	command   string
	count     int
	interval  time.Duration
	histogram *hdrhistogram.Histogram
}

func New(requester Requester, ep client.Endpoint, command string, count int, interval time.Duration) *Probe {
	if count < 1 {
		count = 1
	}
	return &Probe{
		requester: requester,
		endpoint:  ep,
		command:   command,
		count:     count,
		interval:  interval,
		histogram: hdrhistogram.New(1, maxRecordableLatencyNS, sigFigs),
	}
}

// Run performs the exchanges. Failed exchanges are counted, not retried.
// Identical reports whether every successful response matched the first.
// It can be called multiple times, overwriting the results on each call.
func (p *Probe) Run(ctx context.Context) (*Summary, error) {
	p.histogram.Reset()

	var (
		summary = &Summary{Identical: true, Histogram: p.histogram}
		first   *string
		start   = time.Now()
	)
	for i := 0; i < p.count; i++ {
		if i > 0 && p.interval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.interval):
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		before := time.Now()
		resp, err := p.requester.SendRequest(ctx, p.command, p.endpoint)
		latency := time.Since(before).Nanoseconds()
		if rerr := p.histogram.RecordValue(latency); rerr != nil {
			return nil, rerr
		}
		summary.Requests++

		if err != nil {
			summary.Errors++
			summary.LastErr = err
			continue
		}
		if first == nil {
			first = &resp
		} else if resp != *first {
			summary.Identical = false
		}
	}

	summary.Elapsed = time.Since(start)
	summary.P50 = time.Duration(p.histogram.ValueAtQuantile(50))
	summary.P99 = time.Duration(p.histogram.ValueAtQuantile(99))
	summary.Max = time.Duration(p.histogram.Max())
	return summary, nil
}
