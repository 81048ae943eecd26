package bench

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/streambench/pkg/streamapi"
)

var rpcDurationBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

const (
	opAppend = "append"
	opFetch  = "fetch"
	opAck    = "ack"
)

type rpcCounter struct {
	total    atomic.Uint64
	errors   atomic.Uint64
	sumNanos atomic.Uint64
	buckets  []atomic.Uint64
	inFlight atomic.Int64
}

func newRPCCounter() *rpcCounter {
	return &rpcCounter{buckets: make([]atomic.Uint64, len(rpcDurationBuckets))}
}

type rpcValue struct {
	Total      uint64
	Errors     uint64
	SumSeconds float64
	Buckets    []uint64
}

// RPCMetrics tracks latency of the client calls carrying benchmark
// traffic, keyed by operation name.
type RPCMetrics struct {
	mu   sync.RWMutex
	byOp map[string]*rpcCounter
}

func NewRPCMetrics() *RPCMetrics {
	return &RPCMetrics{byOp: map[string]*rpcCounter{}}
}

func (m *RPCMetrics) begin(op string) *rpcCounter {
	m.mu.RLock()
	c := m.byOp[op]
	m.mu.RUnlock()
	if c == nil {
		m.mu.Lock()
		c = m.byOp[op]
		if c == nil {
			c = newRPCCounter()
			m.byOp[op] = c
		}
		m.mu.Unlock()
	}
	c.inFlight.Add(1)
	return c
}

func (m *RPCMetrics) finish(c *rpcCounter, err error, dur time.Duration) {
	if c == nil {
		return
	}
	c.total.Add(1)
	if err != nil {
		c.errors.Add(1)
	}
	if dur > 0 {
		c.sumNanos.Add(uint64(dur.Nanoseconds()))
		d := dur.Seconds()
		for i, b := range rpcDurationBuckets {
			if d <= b {
				c.buckets[i].Add(1)
			}
		}
	}
	c.inFlight.Add(-1)
}

func (m *RPCMetrics) snapshot() map[string]rpcValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]rpcValue, len(m.byOp))
	for op, c := range m.byOp {
		v := rpcValue{
			Total:      c.total.Load(),
			Errors:     c.errors.Load(),
			SumSeconds: float64(c.sumNanos.Load()) / float64(time.Second),
			Buckets:    make([]uint64, len(c.buckets)),
		}
		for i := range c.buckets {
			v.Buckets[i] = c.buckets[i].Load()
		}
		out[op] = v
	}
	return out
}

// RenderPrometheus emits the collected call metrics in text exposition
// format (version 0.0.4).
func (m *RPCMetrics) RenderPrometheus() string {
	snap := m.snapshot()
	ops := make([]string, 0, len(snap))
	for op := range snap {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var b strings.Builder
	b.WriteString("# HELP streambench_rpc_requests_total Client calls issued.\n")
	b.WriteString("# TYPE streambench_rpc_requests_total counter\n")
	b.WriteString("# HELP streambench_rpc_errors_total Client calls that returned an error.\n")
	b.WriteString("# TYPE streambench_rpc_errors_total counter\n")
	b.WriteString("# HELP streambench_rpc_duration_seconds Client call duration in seconds.\n")
	b.WriteString("# TYPE streambench_rpc_duration_seconds histogram\n")
	b.WriteString("# HELP streambench_rpc_in_flight Current in-flight client calls.\n")
	b.WriteString("# TYPE streambench_rpc_in_flight gauge\n")
	for _, op := range ops {
		v := snap[op]
		b.WriteString(fmt.Sprintf("streambench_rpc_requests_total{op=\"%s\"} %d\n", op, v.Total))
		b.WriteString(fmt.Sprintf("streambench_rpc_errors_total{op=\"%s\"} %d\n", op, v.Errors))
		for i, bucket := range rpcDurationBuckets {
			b.WriteString(fmt.Sprintf("streambench_rpc_duration_seconds_bucket{op=\"%s\",le=\"%g\"} %d\n", op, bucket, v.Buckets[i]))
		}
		b.WriteString(fmt.Sprintf("streambench_rpc_duration_seconds_bucket{op=\"%s\",le=\"+Inf\"} %d\n", op, v.Total))
		b.WriteString(fmt.Sprintf("streambench_rpc_duration_seconds_sum{op=\"%s\"} %.9f\n", op, v.SumSeconds))
		b.WriteString(fmt.Sprintf("streambench_rpc_duration_seconds_count{op=\"%s\"} %d\n", op, v.Total))
	}
	var inflight int64
	m.mu.RLock()
	for _, c := range m.byOp {
		inflight += c.inFlight.Load()
	}
	m.mu.RUnlock()
	b.WriteString(fmt.Sprintf("streambench_rpc_in_flight %d\n", inflight))
	return b.String()
}

// measuredTransport wraps a Transport and records call latency for the
// operations on the benchmark hot path. Setup calls pass through.
type measuredTransport struct {
	streamapi.Transport
	metrics *RPCMetrics
}

func (t measuredTransport) Append(ctx context.Context, stream string, records []streamapi.Record) ([]string, error) {
	c := t.metrics.begin(opAppend)
	start := time.Now()
	ids, err := t.Transport.Append(ctx, stream, records)
	t.metrics.finish(c, err, time.Since(start))
	return ids, err
}

func (t measuredTransport) Fetch(ctx context.Context, subscription string, maxRecords int, wait time.Duration) ([]streamapi.ReceivedRecord, error) {
	c := t.metrics.begin(opFetch)
	start := time.Now()
	recs, err := t.Transport.Fetch(ctx, subscription, maxRecords, wait)
	t.metrics.finish(c, err, time.Since(start))
	return recs, err
}

func (t measuredTransport) Ack(ctx context.Context, subscription string, recordIDs []string) error {
	c := t.metrics.begin(opAck)
	start := time.Now()
	err := t.Transport.Ack(ctx, subscription, recordIDs)
	t.metrics.finish(c, err, time.Since(start))
	return err
}
