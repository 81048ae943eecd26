package bench

import (
	"context"

	"github.com/user/streambench/pkg/streamapi"
)

// ConsumerPool attaches ConsumerCount workers to one subscription. Every
// worker's receive handler does exactly two things: increment the fetched
// counter, then acknowledge the record.
type ConsumerPool struct {
	transport    streamapi.Transport
	subscription string
	cfg          Config
	counters     *Counters
	consumers    []*streamapi.Consumer
}

// NewConsumerPool creates the pool; Start launches the workers.
func NewConsumerPool(t streamapi.Transport, subscription string, cfg Config, counters *Counters) *ConsumerPool {
	return &ConsumerPool{
		transport:    t,
		subscription: subscription,
		cfg:          cfg,
		counters:     counters,
	}
}

// Start launches the consumer workers. They run until ctx is cancelled.
func (cp *ConsumerPool) Start(ctx context.Context) {
	for i := 0; i < cp.cfg.ConsumerCount; i++ {
		c := streamapi.NewConsumer(cp.transport, streamapi.ConsumerConfig{
			Subscription: cp.subscription,
			MaxRecords:   cp.cfg.FetchBatch,
		}, cp.receive)
		c.Start(ctx)
		cp.consumers = append(cp.consumers, c)
	}
}

func (cp *ConsumerPool) receive(_ streamapi.ReceivedRecord, resp *streamapi.Responder) {
	cp.counters.Fetched.Add(1)
	resp.Ack()
}

// Wait blocks until every worker has exited.
func (cp *ConsumerPool) Wait() {
	for _, c := range cp.consumers {
		c.Wait()
	}
}

// AckFailures sums rejected acknowledgments across the pool.
func (cp *ConsumerPool) AckFailures() int64 {
	var n int64
	for _, c := range cp.consumers {
		n += c.AckFailures()
	}
	return n
}
