package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/streambench/pkg/streamapi"
)

// memTransport is an in-memory stand-in for the HTTP transport so pipeline
// tests run without a service. Appended records land in a shared queue that
// Fetch drains in order.
type memTransport struct {
	mu             sync.Mutex
	streams        map[string]streamapi.StreamSpec
	subscriptions  map[string]streamapi.SubscriptionSpec
	queue          []streamapi.ReceivedRecord
	acked          []string
	keys           []string
	appendCalls    int
	failedCalls    int
	successRecords int
	fetchCalls     int
	nextID         int

	failAppendEvery int
	ackErr          error
	fetchErr        error
}

var _ streamapi.Transport = (*memTransport)(nil)

func newMemTransport() *memTransport {
	return &memTransport{
		streams:       make(map[string]streamapi.StreamSpec),
		subscriptions: make(map[string]streamapi.SubscriptionSpec),
	}
}

func (m *memTransport) CreateStream(_ context.Context, spec streamapi.StreamSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.streams[spec.Name]; ok {
		return errors.New("stream exists")
	}
	m.streams[spec.Name] = spec
	return nil
}

func (m *memTransport) DeleteStream(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, name)
	return nil
}

func (m *memTransport) ListStreams(_ context.Context) ([]streamapi.StreamInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]streamapi.StreamInfo, 0, len(m.streams))
	for _, spec := range m.streams {
		infos = append(infos, streamapi.StreamInfo{
			Name:              spec.Name,
			ReplicationFactor: spec.ReplicationFactor,
			BacklogDuration:   spec.BacklogDuration,
		})
	}
	return infos, nil
}

func (m *memTransport) CreateSubscription(_ context.Context, spec streamapi.SubscriptionSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[spec.SubscriptionID]; ok {
		return errors.New("subscription exists")
	}
	m.subscriptions[spec.SubscriptionID] = spec
	return nil
}

func (m *memTransport) DeleteSubscription(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, id)
	return nil
}

func (m *memTransport) Append(_ context.Context, _ string, records []streamapi.Record) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if m.failAppendEvery > 0 && m.appendCalls%m.failAppendEvery == 0 {
		m.failedCalls++
		return nil, fmt.Errorf("induced append failure on call %d", m.appendCalls)
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		m.nextID++
		ids[i] = fmt.Sprintf("m-%d", m.nextID)
		m.keys = append(m.keys, rec.OrderingKey)
		recv := streamapi.ReceivedRecord{ID: ids[i], OrderingKey: rec.OrderingKey, Raw: rec.Raw}
		if rec.HRecord != nil {
			b, err := json.Marshal(rec.HRecord)
			if err != nil {
				return nil, err
			}
			recv.HRecord = b
		}
		m.queue = append(m.queue, recv)
	}
	m.successRecords += len(records)
	return ids, nil
}

func (m *memTransport) Fetch(ctx context.Context, _ string, maxRecords int, wait time.Duration) ([]streamapi.ReceivedRecord, error) {
	m.mu.Lock()
	m.fetchCalls++
	if m.fetchErr != nil {
		err := m.fetchErr
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	deadline := time.Now().Add(wait)
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			n := len(m.queue)
			if n > maxRecords {
				n = maxRecords
			}
			batch := append([]streamapi.ReceivedRecord(nil), m.queue[:n]...)
			m.queue = m.queue[n:]
			m.mu.Unlock()
			return batch, nil
		}
		m.mu.Unlock()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (m *memTransport) Ack(_ context.Context, _ string, recordIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ackErr != nil {
		return m.ackErr
	}
	m.acked = append(m.acked, recordIDs...)
	return nil
}

func (m *memTransport) appendStats() (calls, failed, succeeded int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCalls, m.failedCalls, m.successRecords
}

func (m *memTransport) orderingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

func (m *memTransport) ackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.acked)
}

func (m *memTransport) streamSpecs() []streamapi.StreamSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	specs := make([]streamapi.StreamSpec, 0, len(m.streams))
	for _, s := range m.streams {
		specs = append(specs, s)
	}
	return specs
}

func (m *memTransport) subscriptionSpecs() []streamapi.SubscriptionSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	specs := make([]streamapi.SubscriptionSpec, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		specs = append(specs, s)
	}
	return specs
}
