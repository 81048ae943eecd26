package bench

import (
	"sync/atomic"
	"time"
)

// Counters hold the benchmark's shared progress state. Producer completion
// callbacks and consumer workers increment them concurrently; the reporter
// reads them concurrently with all writers. Values only ever grow.
type Counters struct {
	SuccessAppends atomic.Int64
	FailedAppends  atomic.Int64
	Fetched        atomic.Int64
}

// Sample is a point-in-time read of the counters. Each counter is read
// atomically on its own; no cross-counter snapshot is implied.
type Sample struct {
	Time    time.Time
	Success int64
	Failed  int64
	Fetched int64
}

// Sample reads all counters at the given timestamp.
func (c *Counters) Sample(now time.Time) Sample {
	return Sample{
		Time:    now,
		Success: c.SuccessAppends.Load(),
		Failed:  c.FailedAppends.Load(),
		Fetched: c.Fetched.Load(),
	}
}
