package bench

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Rates are the windowed throughput numbers for one report interval.
type Rates struct {
	SuccessPerSec float64 `json:"success_per_sec"`
	FailedPerSec  float64 `json:"failed_per_sec"`
	AppendMBps    float64 `json:"append_mbps"`
	FetchMBps     float64 `json:"fetch_mbps"`
}

// computeRates turns two counter samples into per-second rates. Throughput
// is derived from the configured record size with 1024-based units; the
// append throughput counts successful writes only. A window with no elapsed
// time reports zero rates.
func computeRates(prev, cur Sample, recordSize int) Rates {
	elapsed := cur.Time.Sub(prev.Time).Milliseconds()
	if elapsed <= 0 {
		return Rates{}
	}
	ms := float64(elapsed)
	success := float64(cur.Success - prev.Success)
	failed := float64(cur.Failed - prev.Failed)
	fetched := float64(cur.Fetched - prev.Fetched)
	size := float64(recordSize)
	return Rates{
		SuccessPerSec: success * 1000 / ms,
		FailedPerSec:  failed * 1000 / ms,
		AppendMBps:    success * size * 1000 / ms / 1024 / 1024,
		FetchMBps:     fetched * size * 1000 / ms / 1024 / 1024,
	}
}

// ReporterConfig configures the report loop.
type ReporterConfig struct {
	Interval   time.Duration // default 3s
	RecordSize int
	Out        io.Writer // default os.Stdout
}

// Reporter periodically samples the counters and prints windowed write and
// read statistics. It is single-threaded: one sample is live at a time.
type Reporter struct {
	cfg      ReporterConfig
	counters *Counters
	prev     Sample

	mu   sync.Mutex
	last Rates
}

// NewReporter creates a reporter over the given counters.
func NewReporter(cfg ReporterConfig, counters *Counters) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Reporter{cfg: cfg, counters: counters}
}

// Run reports every interval until ctx is cancelled. It is the benchmark's
// main control loop once setup completes.
func (r *Reporter) Run(ctx context.Context) {
	r.prev = r.counters.Sample(time.Now())

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.tick(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// tick takes a sample, prints the two report lines, and advances the window.
func (r *Reporter) tick(now time.Time) {
	cur := r.counters.Sample(now)
	rates := computeRates(r.prev, cur, r.cfg.RecordSize)
	r.prev = cur

	r.mu.Lock()
	r.last = rates
	r.mu.Unlock()

	fmt.Fprintf(r.cfg.Out, "[Append]: success %f record/s, failed %f record/s, throughput %f MB/s\n",
		rates.SuccessPerSec, rates.FailedPerSec, rates.AppendMBps)
	fmt.Fprintf(r.cfg.Out, "[Fetch]: throughput %f MB/s\n", rates.FetchMBps)
}

// LastRates returns the most recently reported window.
func (r *Reporter) LastRates() Rates {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
