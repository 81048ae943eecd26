package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/user/streambench/pkg/streamapi"
)

// Option configures a Bench.
type Option func(*Bench)

// WithOutput redirects the report lines (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(b *Bench) { b.out = w }
}

// Bench wires the benchmark together: ephemeral stream and subscription,
// buffered producer, rate-limited append loop, consumer pool, and the
// reporter loop that drives the process once running.
type Bench struct {
	transport streamapi.Transport
	cfg       Config
	counters  *Counters
	reporter  *Reporter
	rpc       *RPCMetrics
	out       io.Writer

	mu           sync.Mutex
	stream       string
	subscription string
	producer     *streamapi.BufferedProducer
	pool         *ConsumerPool
}

// New validates cfg and creates a benchmark run.
func New(t streamapi.Transport, cfg Config, opts ...Option) (*Bench, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bench config: %w", err)
	}
	b := &Bench{
		transport: t,
		cfg:       cfg,
		counters:  &Counters{},
		rpc:       NewRPCMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.reporter = NewReporter(ReporterConfig{
		Interval:   cfg.ReportInterval,
		RecordSize: cfg.RecordSize,
		Out:        b.out,
	}, b.counters)
	return b, nil
}

// Setup creates the ephemeral stream and subscription. Errors here are
// fatal to the run; nothing has started yet.
func (b *Bench) Setup(ctx context.Context) error {
	stream := b.cfg.StreamNamePrefix + uuid.NewString()
	err := b.transport.CreateStream(ctx, streamapi.StreamSpec{
		Name:              stream,
		ReplicationFactor: b.cfg.ReplicationFactor,
		BacklogDuration:   b.cfg.BacklogDuration,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", stream, err)
	}

	subscription := b.cfg.SubscriptionPrefix + uuid.NewString()
	err = b.transport.CreateSubscription(ctx, streamapi.SubscriptionSpec{
		SubscriptionID: subscription,
		Stream:         stream,
		AckTimeout:     b.cfg.AckTimeout,
	})
	if err != nil {
		return fmt.Errorf("create subscription %s: %w", subscription, err)
	}

	b.mu.Lock()
	b.stream = stream
	b.subscription = subscription
	b.mu.Unlock()

	slog.Info("benchmark target ready", "stream", stream, "subscription", subscription)
	return nil
}

// Run starts the producer and consumers, then drives the reporter loop on
// the calling goroutine until ctx is cancelled. Teardown flushes the
// producer and waits for the consumers to exit.
func (b *Bench) Run(ctx context.Context) error {
	stream, subscription := b.Stream(), b.Subscription()
	if stream == "" || subscription == "" {
		return fmt.Errorf("bench: Run called before Setup")
	}

	transport := measuredTransport{Transport: b.transport, metrics: b.rpc}
	producer := streamapi.NewBufferedProducer(transport, streamapi.ProducerConfig{
		Stream:          stream,
		BatchBytesLimit: b.cfg.BatchBytesLimit,
		BatchAgeLimit:   b.cfg.BatchAgeLimit,
		TotalBytesLimit: b.cfg.TotalBytesLimit,
	})
	pool := NewConsumerPool(transport, subscription, b.cfg, b.counters)

	b.mu.Lock()
	b.producer = producer
	b.pool = pool
	b.mu.Unlock()

	limiter := NewLimiter(float64(b.cfg.RateLimit))
	appendLoop := NewProducer(producer, limiter, b.counters, MakeRecord(b.cfg), b.cfg.OrderingKeys)

	appendDone := make(chan struct{})
	go func() {
		defer close(appendDone)
		appendLoop.Run(ctx)
	}()

	pool.Start(ctx)

	b.reporter.Run(ctx)

	<-appendDone
	producer.Close()
	pool.Wait()
	slog.Info("benchmark stopped",
		"success", b.counters.SuccessAppends.Load(),
		"failed", b.counters.FailedAppends.Load(),
		"fetched", b.counters.Fetched.Load(),
	)
	return nil
}

// Stream returns the ephemeral stream name, empty before Setup.
func (b *Bench) Stream() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stream
}

// Subscription returns the ephemeral subscription name, empty before Setup.
func (b *Bench) Subscription() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscription
}

// Counters exposes the live counters for the operational surface.
func (b *Bench) Counters() *Counters {
	return b.counters
}

// Rates returns the most recently reported window.
func (b *Bench) Rates() Rates {
	return b.reporter.LastRates()
}

// RPC exposes call latency metrics for the operational surface.
func (b *Bench) RPC() *RPCMetrics {
	return b.rpc
}

// AckFailures reports rejected acknowledgments across the consumer pool.
func (b *Bench) AckFailures() int64 {
	b.mu.Lock()
	pool := b.pool
	b.mu.Unlock()
	if pool == nil {
		return 0
	}
	return pool.AckFailures()
}
