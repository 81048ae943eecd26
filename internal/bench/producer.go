package bench

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/user/streambench/pkg/streamapi"
)

// Writer is the producer-side transport: a buffered stream producer.
type Writer interface {
	Write(rec streamapi.Record) *streamapi.AppendFuture
}

// Producer generates write pressure at a steady rate. It copies the payload
// template per send with a random ordering key and tracks every outcome via
// the completion callback; it never waits for a write to finish and never
// retries one.
type Producer struct {
	writer   Writer
	limiter  *Limiter
	counters *Counters
	template streamapi.Record
	keys     int
}

// NewProducer creates the append loop worker.
func NewProducer(w Writer, limiter *Limiter, counters *Counters, template streamapi.Record, orderingKeys int) *Producer {
	if orderingKeys <= 0 {
		orderingKeys = 1
	}
	return &Producer{
		writer:   w,
		limiter:  limiter,
		counters: counters,
		template: template,
		keys:     orderingKeys,
	}
}

// Run submits writes until ctx is cancelled. The only suspension point is
// the rate-limiter gate. Completion callbacks run on transport goroutines
// and touch nothing but the counters; failed writes are counted, not
// retried.
func (p *Producer) Run(ctx context.Context) {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		key := fmt.Sprintf("test_%d", rand.IntN(p.keys))
		p.writer.Write(p.template.WithOrderingKey(key)).OnComplete(p.onComplete)
	}
}

func (p *Producer) onComplete(_ string, err error) {
	if err != nil {
		p.counters.FailedAppends.Add(1)
		return
	}
	p.counters.SuccessAppends.Add(1)
}
