// Package bench implements the write/read benchmark engine: a rate-limited
// producer loop, a concurrent consumer pool sharing one subscription, and a
// windowed throughput reporter over lock-free counters.
package bench

import (
	"fmt"
	"time"
)

// Payload kinds.
const (
	RecordTypeRaw     = "raw"
	RecordTypeHRecord = "hrecord"
)

// Config is the immutable benchmark configuration, captured once at startup.
type Config struct {
	StreamNamePrefix   string
	SubscriptionPrefix string
	ReplicationFactor  int
	BacklogDuration    int // seconds
	RecordSize         int // bytes
	BatchAgeLimit      time.Duration
	BatchBytesLimit    int
	ReportInterval     time.Duration
	RateLimit          int // records per second
	OrderingKeys       int
	TotalBytesLimit    int64 // in-flight cap in bytes, -1 unlimited
	RecordType         string
	ConsumerCount      int
	AckTimeout         int // seconds
	FetchBatch         int // records per fetch request
}

// DefaultConfig returns the stock benchmark settings.
func DefaultConfig() Config {
	return Config{
		StreamNamePrefix:   "write_bench_stream_",
		SubscriptionPrefix: "bench_WriteRead_sub_",
		ReplicationFactor:  1,
		BacklogDuration:    60 * 30,
		RecordSize:         1024,
		BatchAgeLimit:      10 * time.Millisecond,
		BatchBytesLimit:    1024 * 1024,
		ReportInterval:     3 * time.Second,
		RateLimit:          100000,
		OrderingKeys:       10,
		TotalBytesLimit:    -1,
		RecordType:         RecordTypeRaw,
		ConsumerCount:      1,
		AckTimeout:         60,
		FetchBatch:         256,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.RecordSize <= 0 {
		return fmt.Errorf("record size must be positive, got %d", c.RecordSize)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit)
	}
	if c.OrderingKeys <= 0 {
		return fmt.Errorf("ordering keys must be positive, got %d", c.OrderingKeys)
	}
	if c.ConsumerCount <= 0 {
		return fmt.Errorf("consumer count must be positive, got %d", c.ConsumerCount)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report interval must be positive, got %s", c.ReportInterval)
	}
	if c.RecordType != RecordTypeRaw && c.RecordType != RecordTypeHRecord {
		return fmt.Errorf("record type must be %q or %q, got %q", RecordTypeRaw, RecordTypeHRecord, c.RecordType)
	}
	return nil
}
