package streamapi

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	// Subscription is the consumption group to fetch from.
	Subscription string

	// MaxRecords is the per-fetch record cap. Default 256.
	MaxRecords int

	// FetchWait is the long-poll wait per fetch request. Default 5s.
	FetchWait time.Duration

	// AckInterval is the ack batch flush cadence. Default 100ms.
	AckInterval time.Duration

	// AckBatchSize flushes the ack batch early at this many IDs. Default 512.
	AckBatchSize int
}

// Receiver handles one delivered record. It must call resp.Ack() for every
// record, or the service redelivers it after the subscription's ack timeout.
type Receiver func(rec ReceivedRecord, resp *Responder)

// Consumer drives a fetch/ack loop against one subscription. Several
// consumers may share a subscription; the service delivers each record to at
// most one of them at a time.
type Consumer struct {
	transport Transport
	cfg       ConsumerConfig
	receiver  Receiver

	ctx       context.Context
	acks      chan string
	ackFailed atomic.Int64
	wg        sync.WaitGroup
	started   bool
}

// NewConsumer creates a consumer. Start launches its loops.
func NewConsumer(t Transport, cfg ConsumerConfig, receiver Receiver) *Consumer {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 256
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}
	if cfg.AckInterval <= 0 {
		cfg.AckInterval = 100 * time.Millisecond
	}
	if cfg.AckBatchSize <= 0 {
		cfg.AckBatchSize = 512
	}
	return &Consumer{
		transport: t,
		cfg:       cfg,
		receiver:  receiver,
		acks:      make(chan string, 4096),
	}
}

// Start launches the fetch and ack loops. They run until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	if c.started {
		return
	}
	c.started = true
	c.ctx = ctx
	c.wg.Add(2)
	go c.fetchLoop(ctx)
	go c.ackLoop(ctx)
}

// Wait blocks until both loops have exited after ctx cancellation.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

// AckFailures returns how many acknowledgments the service rejected.
func (c *Consumer) AckFailures() int64 {
	return c.ackFailed.Load()
}

func (c *Consumer) fetchLoop(ctx context.Context) {
	defer c.wg.Done()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		records, err := c.transport.Fetch(ctx, c.cfg.Subscription, c.cfg.MaxRecords, c.cfg.FetchWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			attempt++
			slog.Debug("fetch failed", "subscription", c.cfg.Subscription, "attempt", attempt, "error", err)
			if !sleepCtx(ctx, fetchBackoff(attempt)) {
				return
			}
			continue
		}
		attempt = 0

		for _, rec := range records {
			c.receiver(rec, &Responder{consumer: c, recordID: rec.ID})
		}
	}
}

func (c *Consumer) ackLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.AckInterval)
	defer ticker.Stop()

	batch := make([]string, 0, c.cfg.AckBatchSize)

	for {
		select {
		case id := <-c.acks:
			batch = append(batch, id)
			if len(batch) >= c.cfg.AckBatchSize {
				c.flushAcks(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				c.flushAcks(ctx, batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			// Final drain so records acked just before shutdown still land.
			for {
				select {
				case id := <-c.acks:
					batch = append(batch, id)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				c.flushAcks(flushCtx, batch)
				cancel()
			}
			return
		}
	}
}

func (c *Consumer) flushAcks(ctx context.Context, ids []string) {
	if err := c.transport.Ack(ctx, c.cfg.Subscription, ids); err != nil {
		c.ackFailed.Add(int64(len(ids)))
		slog.Debug("ack failed", "subscription", c.cfg.Subscription, "records", len(ids), "error", err)
	}
}

// fetchBackoff grows 10ms, 20ms, 40ms... capped at 1s.
func fetchBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 8 {
		return time.Second
	}
	d := 10 * time.Millisecond << (attempt - 1)
	if d > time.Second {
		d = time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Responder acknowledges one delivered record. Ack is idempotent per
// responder; calling it again is a no-op.
type Responder struct {
	consumer *Consumer
	recordID string
	acked    atomic.Bool
}

// Ack queues the record's acknowledgment. Acks ship in batches on the
// consumer's ack loop.
func (r *Responder) Ack() {
	if !r.acked.CompareAndSwap(false, true) {
		return
	}
	select {
	case r.consumer.acks <- r.recordID:
	case <-r.consumer.ctx.Done():
	}
}
