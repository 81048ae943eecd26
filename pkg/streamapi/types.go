package streamapi

import (
	"encoding/json"
	"fmt"
)

// StreamSpec describes a stream to create.
type StreamSpec struct {
	Name              string `json:"name"`
	ReplicationFactor int    `json:"replication_factor"`
	BacklogDuration   int    `json:"backlog_duration_seconds"`
}

// StreamInfo is a stream as reported by the service.
type StreamInfo struct {
	Name              string `json:"name"`
	ReplicationFactor int    `json:"replication_factor"`
	BacklogDuration   int    `json:"backlog_duration_seconds"`
	CreatedAt         string `json:"created_at,omitempty"`
}

// SubscriptionSpec describes a subscription to create. AckTimeout is the
// window in seconds after which an unacknowledged record becomes eligible
// for redelivery.
type SubscriptionSpec struct {
	SubscriptionID string `json:"subscription_id"`
	Stream         string `json:"stream"`
	AckTimeout     int    `json:"ack_timeout_seconds"`
}

// HRecord is a structured key/value payload.
type HRecord map[string]interface{}

// Record is a single payload to append to a stream. Exactly one of Raw and
// HRecord is set. Records are immutable once handed to a producer; reuse a
// record as a template by copying it, not by mutating it in place.
type Record struct {
	OrderingKey string  `json:"ordering_key,omitempty"`
	Raw         []byte  `json:"raw,omitempty"`
	HRecord     HRecord `json:"hrecord,omitempty"`
}

// WithOrderingKey returns a copy of the record carrying the given key. The
// payload is shared, which is safe because payloads are never mutated.
func (r Record) WithOrderingKey(key string) Record {
	r.OrderingKey = key
	return r
}

// IsRaw reports whether the record carries an opaque byte payload.
func (r Record) IsRaw() bool {
	return r.HRecord == nil
}

// PayloadSize returns the payload size in bytes used for batch and
// flow-control accounting: the raw length for raw records, the encoded JSON
// length for structured ones.
func (r Record) PayloadSize() int {
	if r.HRecord == nil {
		return len(r.Raw)
	}
	b, err := json.Marshal(r.HRecord)
	if err != nil {
		return 0
	}
	return len(b)
}

func (r Record) validate() error {
	if r.Raw != nil && r.HRecord != nil {
		return fmt.Errorf("record has both raw and hrecord payloads")
	}
	if r.Raw == nil && r.HRecord == nil {
		return fmt.Errorf("record has no payload")
	}
	return nil
}

// ReceivedRecord is a record delivered to a consumer. ID is the service
// assigned record identifier used for acknowledgment.
type ReceivedRecord struct {
	ID          string          `json:"id"`
	OrderingKey string          `json:"ordering_key,omitempty"`
	Raw         []byte          `json:"raw,omitempty"`
	HRecord     json.RawMessage `json:"hrecord,omitempty"`
}

// IsRaw reports whether the delivered record carries an opaque byte payload.
func (r ReceivedRecord) IsRaw() bool {
	return len(r.HRecord) == 0
}
