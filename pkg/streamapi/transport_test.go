package streamapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// fakeTransport is an in-memory Transport for exercising the producer and
// consumer without a service. Error and gate knobs are set before any loop
// starts and never mutated afterwards.
type fakeTransport struct {
	appendErr  func(batch []Record) error
	appendGate chan struct{}
	ackErr     error
	fetchErr   error
	discard    bool

	mu         sync.Mutex
	streams    map[string]StreamSpec
	subs       map[string]SubscriptionSpec
	appends    [][]Record
	queue      []ReceivedRecord
	acked      []string
	fetchCalls int
	nextID     int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		streams: map[string]StreamSpec{},
		subs:    map[string]SubscriptionSpec{},
	}
}

func (f *fakeTransport) CreateStream(ctx context.Context, spec StreamSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[spec.Name] = spec
	return nil
}

func (f *fakeTransport) DeleteStream(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.streams, name)
	return nil
}

func (f *fakeTransport) ListStreams(ctx context.Context) ([]StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StreamInfo, 0, len(f.streams))
	for name, spec := range f.streams {
		out = append(out, StreamInfo{
			Name:              name,
			ReplicationFactor: spec.ReplicationFactor,
			BacklogDuration:   spec.BacklogDuration,
		})
	}
	return out, nil
}

func (f *fakeTransport) CreateSubscription(ctx context.Context, spec SubscriptionSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[spec.SubscriptionID] = spec
	return nil
}

func (f *fakeTransport) DeleteSubscription(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	return nil
}

func (f *fakeTransport) Append(ctx context.Context, stream string, records []Record) ([]string, error) {
	if f.appendGate != nil {
		select {
		case <-f.appendGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		if err := f.appendErr(records); err != nil {
			return nil, err
		}
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		f.nextID++
		ids[i] = fmt.Sprintf("r-%d", f.nextID)
		if f.discard {
			continue
		}
		rr := ReceivedRecord{ID: ids[i], OrderingKey: rec.OrderingKey, Raw: rec.Raw}
		if rec.HRecord != nil {
			b, _ := json.Marshal(rec.HRecord)
			rr.HRecord = b
		}
		f.queue = append(f.queue, rr)
	}
	if !f.discard {
		batch := make([]Record, len(records))
		copy(batch, records)
		f.appends = append(f.appends, batch)
	}
	return ids, nil
}

func (f *fakeTransport) Fetch(ctx context.Context, subscription string, maxRecords int, wait time.Duration) ([]ReceivedRecord, error) {
	deadline := time.Now().Add(wait)
	for {
		f.mu.Lock()
		f.fetchCalls++
		if f.fetchErr != nil {
			f.mu.Unlock()
			return nil, f.fetchErr
		}
		if len(f.queue) > 0 {
			n := maxRecords
			if n > len(f.queue) {
				n = len(f.queue)
			}
			out := make([]ReceivedRecord, n)
			copy(out, f.queue[:n])
			f.queue = f.queue[n:]
			f.mu.Unlock()
			return out, nil
		}
		f.mu.Unlock()

		if wait <= 0 || !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeTransport) Ack(ctx context.Context, subscription string, recordIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, recordIDs...)
	return nil
}

// seed places records directly on the fetch queue.
func (f *fakeTransport) seed(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.nextID++
		f.queue = append(f.queue, ReceivedRecord{
			ID:  fmt.Sprintf("r-%d", f.nextID),
			Raw: []byte("payload"),
		})
	}
}

func (f *fakeTransport) appendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appends)
}

func (f *fakeTransport) batch(i int) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends[i]
}

func (f *fakeTransport) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.acked))
	copy(out, f.acked)
	return out
}

var _ Transport = (*fakeTransport)(nil)
