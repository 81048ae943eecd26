package streamapi

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ProducerConfig configures a BufferedProducer.
type ProducerConfig struct {
	// Stream is the target stream name.
	Stream string

	// BatchBytesLimit flushes a batch once its accumulated payload bytes
	// reach this value. Default 1 MiB.
	BatchBytesLimit int

	// BatchAgeLimit flushes a batch once its oldest record has been pending
	// this long. Default 10ms.
	BatchAgeLimit time.Duration

	// TotalBytesLimit caps payload bytes submitted but not yet resolved.
	// Writes over the cap wait until in-flight bytes drain. A value < 0
	// disables the cap. A record larger than the cap is still admitted when
	// the pipeline is empty, so oversized records cannot deadlock the
	// producer. Default -1.
	TotalBytesLimit int64

	// FlushTimeout bounds a single append request. Default 30s.
	FlushTimeout time.Duration
}

// DefaultProducerConfig returns the default producer settings for a stream.
func DefaultProducerConfig(stream string) ProducerConfig {
	return ProducerConfig{
		Stream:          stream,
		BatchBytesLimit: 1024 * 1024,
		BatchAgeLimit:   10 * time.Millisecond,
		TotalBytesLimit: -1,
		FlushTimeout:    30 * time.Second,
	}
}

const producerQueueDepth = 4096

// BufferedProducer batches individual writes into append requests,
// amortizing one round trip across a whole batch. Batches flush on byte
// size, on age, on Flush, and on Close. There is no per-batch record count
// limit.
//
// Write is safe for concurrent use. Close must not be called concurrently
// with Write.
type BufferedProducer struct {
	transport Transport
	cfg       ProducerConfig

	pending   chan *appendOp
	flushReqs chan chan struct{}
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once

	mu       sync.Mutex
	cond     *sync.Cond
	inflight int64
	closed   bool
}

// appendOp carries one record through the batch loop.
type appendOp struct {
	rec  Record
	size int
	fut  *AppendFuture
}

// NewBufferedProducer creates and starts a producer for cfg.Stream.
func NewBufferedProducer(t Transport, cfg ProducerConfig) *BufferedProducer {
	if cfg.BatchBytesLimit <= 0 {
		cfg.BatchBytesLimit = 1024 * 1024
	}
	if cfg.BatchAgeLimit <= 0 {
		cfg.BatchAgeLimit = 10 * time.Millisecond
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 30 * time.Second
	}

	p := &BufferedProducer{
		transport: t,
		cfg:       cfg,
		pending:   make(chan *appendOp, producerQueueDepth),
		flushReqs: make(chan chan struct{}),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.loop()
	return p
}

// Write enqueues one record and returns a future resolving to its record ID
// or an error. Write does not wait for the append to complete; it blocks
// only while the flow-control cap or the pending queue is full.
func (p *BufferedProducer) Write(rec Record) *AppendFuture {
	fut := newAppendFuture()
	if err := rec.validate(); err != nil {
		fut.resolve("", err)
		return fut
	}

	op := &appendOp{rec: rec, size: rec.PayloadSize(), fut: fut}
	if !p.acquire(op.size) {
		fut.resolve("", ErrClosed)
		return fut
	}

	select {
	case p.pending <- op:
	case <-p.stop:
		p.release(op.size)
		fut.resolve("", ErrClosed)
	}
	return fut
}

// Flush forces the current batch out and waits until it has been appended.
func (p *BufferedProducer) Flush() {
	reply := make(chan struct{})
	select {
	case p.flushReqs <- reply:
		<-reply
	case <-p.stop:
	}
}

// Close flushes pending records, resolves their futures, and stops the
// batch loop.
func (p *BufferedProducer) Close() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.cond.Broadcast()
		p.mu.Unlock()

		close(p.stop)
		<-p.done

		// Resolve anything stranded between a Write send and loop exit.
		for {
			select {
			case op := <-p.pending:
				p.release(op.size)
				op.fut.resolve("", ErrClosed)
			default:
				return
			}
		}
	})
}

// InflightBytes returns payload bytes submitted but not yet resolved.
func (p *BufferedProducer) InflightBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}

func (p *BufferedProducer) acquire(size int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cfg.TotalBytesLimit < 0 {
		if p.closed {
			return false
		}
		p.inflight += int64(size)
		return true
	}
	for !p.closed && p.inflight > 0 && p.inflight+int64(size) > p.cfg.TotalBytesLimit {
		p.cond.Wait()
	}
	if p.closed {
		return false
	}
	p.inflight += int64(size)
	return true
}

func (p *BufferedProducer) release(size int) {
	p.mu.Lock()
	p.inflight -= int64(size)
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *BufferedProducer) loop() {
	defer close(p.done)

	// Armed only while a batch is pending, so a batch flushes once its first
	// record is cfg.BatchAgeLimit old.
	timer := time.NewTimer(p.cfg.BatchAgeLimit)
	stopFlushTimer(timer)
	defer timer.Stop()

	var batch []*appendOp
	var batchBytes int

	flushBatch := func() {
		p.flush(batch)
		batch = nil
		batchBytes = 0
	}

	for {
		select {
		case op := <-p.pending:
			if len(batch) == 0 {
				timer.Reset(p.cfg.BatchAgeLimit)
			}
			batch = append(batch, op)
			batchBytes += op.size

			// Non-blocking top-up until the byte limit.
		topUp:
			for batchBytes < p.cfg.BatchBytesLimit {
				select {
				case op := <-p.pending:
					batch = append(batch, op)
					batchBytes += op.size
				default:
					break topUp
				}
			}
			if batchBytes >= p.cfg.BatchBytesLimit {
				stopFlushTimer(timer)
				flushBatch()
			}

		case <-timer.C:
			if len(batch) > 0 {
				flushBatch()
			}

		case reply := <-p.flushReqs:
			drainPending(p.pending, &batch, &batchBytes)
			if len(batch) > 0 {
				stopFlushTimer(timer)
				flushBatch()
			}
			close(reply)

		case <-p.stop:
			drainPending(p.pending, &batch, &batchBytes)
			if len(batch) > 0 {
				flushBatch()
			}
			return
		}
	}
}

func drainPending(pending chan *appendOp, batch *[]*appendOp, batchBytes *int) {
	for {
		select {
		case op := <-pending:
			*batch = append(*batch, op)
			*batchBytes += op.size
		default:
			return
		}
	}
}

func stopFlushTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// flush appends the batch in one request. The whole batch shares a fate:
// every future resolves with its record ID on success, or with the append
// error on failure.
func (p *BufferedProducer) flush(batch []*appendOp) {
	if len(batch) == 0 {
		return
	}

	records := make([]Record, len(batch))
	for i, op := range batch {
		records[i] = op.rec
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.FlushTimeout)
	ids, err := p.transport.Append(ctx, p.cfg.Stream, records)
	cancel()

	for _, op := range batch {
		p.release(op.size)
	}

	if err != nil {
		err = fmt.Errorf("append batch: %w", err)
		for _, op := range batch {
			op.fut.resolve("", err)
		}
		return
	}
	for i, op := range batch {
		op.fut.resolve(ids[i], nil)
	}
}

// AppendFuture resolves to the outcome of one buffered write.
type AppendFuture struct {
	mu       sync.Mutex
	done     chan struct{}
	resolved bool
	id       string
	err      error
	handlers []func(recordID string, err error)
}

func newAppendFuture() *AppendFuture {
	return &AppendFuture{done: make(chan struct{})}
}

// OnComplete registers a handler invoked exactly once when the write
// resolves, on the goroutine that resolves it. Handlers registered after
// resolution run immediately on the caller's goroutine. Handler bodies
// should be small; they run on the producer's flush path.
func (f *AppendFuture) OnComplete(fn func(recordID string, err error)) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		fn(f.id, f.err)
		return
	}
	f.handlers = append(f.handlers, fn)
	f.mu.Unlock()
}

// Done is closed once the write has resolved.
func (f *AppendFuture) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the write resolves.
func (f *AppendFuture) Result() (recordID string, err error) {
	<-f.done
	return f.id, f.err
}

func (f *AppendFuture) resolve(id string, err error) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return
	}
	f.resolved = true
	f.id = id
	f.err = err
	handlers := f.handlers
	f.handlers = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range handlers {
		fn(id, err)
	}
}
