package bench

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/user/streambench/pkg/streamapi"
)

func seedRecords(t *testing.T, mt *memTransport, n int) {
	t.Helper()
	records := make([]streamapi.Record, n)
	for i := range records {
		records[i] = streamapi.Record{OrderingKey: fmt.Sprintf("test_%d", i%4), Raw: []byte("payload")}
	}
	if _, err := mt.Append(context.Background(), "bench-stream", records); err != nil {
		t.Fatalf("seed append: %v", err)
	}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConsumerPoolFetchesAndAcks(t *testing.T) {
	mt := newMemTransport()
	seedRecords(t, mt, 20)

	var c Counters
	cfg := DefaultConfig()
	cfg.ConsumerCount = 2
	cfg.FetchBatch = 8
	pool := NewConsumerPool(mt, "bench-sub", cfg, &c)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	waitFor(t, 2*time.Second, func() bool { return mt.ackedCount() == 20 }, "pool never acked all records")
	cancel()
	pool.Wait()

	if got := c.Fetched.Load(); got != 20 {
		t.Errorf("Fetched = %d, want 20", got)
	}
	if got := mt.ackedCount(); got != 20 {
		t.Errorf("acked records = %d, want 20 (each record acked exactly once)", got)
	}
	if got := pool.AckFailures(); got != 0 {
		t.Errorf("AckFailures() = %d, want 0", got)
	}
}

func TestConsumerPoolCountsAckFailures(t *testing.T) {
	mt := newMemTransport()
	mt.ackErr = errors.New("subscription gone")
	seedRecords(t, mt, 10)

	var c Counters
	cfg := DefaultConfig()
	cfg.ConsumerCount = 1
	cfg.FetchBatch = 64
	pool := NewConsumerPool(mt, "bench-sub", cfg, &c)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	waitFor(t, 2*time.Second, func() bool { return pool.AckFailures() == 10 }, "ack failures never recorded")
	cancel()
	pool.Wait()

	if got := c.Fetched.Load(); got != 10 {
		t.Errorf("Fetched = %d, want 10 (fetch succeeds even when acks fail)", got)
	}
	if got := mt.ackedCount(); got != 0 {
		t.Errorf("acked records = %d, want 0", got)
	}
}

func TestConsumerPoolStartsConfiguredWorkers(t *testing.T) {
	mt := newMemTransport()

	var c Counters
	cfg := DefaultConfig()
	cfg.ConsumerCount = 3
	pool := NewConsumerPool(mt, "bench-sub", cfg, &c)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	if len(pool.consumers) != 3 {
		t.Errorf("workers started = %d, want 3", len(pool.consumers))
	}

	cancel()
	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
}
