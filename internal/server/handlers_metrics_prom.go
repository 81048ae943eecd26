package server

import (
	"fmt"
	"net/http"
	"runtime"
)

func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	// --- Benchmark Counters ---
	c := s.bench.Counters()
	fmt.Fprintln(w, "# HELP streambench_append_success_total Appends acknowledged by the service.")
	fmt.Fprintln(w, "# TYPE streambench_append_success_total counter")
	fmt.Fprintf(w, "streambench_append_success_total %d\n", c.SuccessAppends.Load())
	fmt.Fprintln(w, "# HELP streambench_append_failed_total Appends rejected or errored.")
	fmt.Fprintln(w, "# TYPE streambench_append_failed_total counter")
	fmt.Fprintf(w, "streambench_append_failed_total %d\n", c.FailedAppends.Load())
	fmt.Fprintln(w, "# HELP streambench_fetched_total Records delivered to consumers.")
	fmt.Fprintln(w, "# TYPE streambench_fetched_total counter")
	fmt.Fprintf(w, "streambench_fetched_total %d\n", c.Fetched.Load())
	fmt.Fprintln(w, "# HELP streambench_ack_failed_total Acknowledgments the service rejected.")
	fmt.Fprintln(w, "# TYPE streambench_ack_failed_total counter")
	fmt.Fprintf(w, "streambench_ack_failed_total %d\n", s.bench.AckFailures())

	// --- Reported Rates ---
	rates := s.bench.Rates()
	fmt.Fprintln(w, "# HELP streambench_append_success_rate Appends per second over the last report window.")
	fmt.Fprintln(w, "# TYPE streambench_append_success_rate gauge")
	fmt.Fprintf(w, "streambench_append_success_rate %f\n", rates.SuccessPerSec)
	fmt.Fprintln(w, "# HELP streambench_append_mbps Append throughput in MB/s over the last report window.")
	fmt.Fprintln(w, "# TYPE streambench_append_mbps gauge")
	fmt.Fprintf(w, "streambench_append_mbps %f\n", rates.AppendMBps)
	fmt.Fprintln(w, "# HELP streambench_fetch_mbps Fetch throughput in MB/s over the last report window.")
	fmt.Fprintln(w, "# TYPE streambench_fetch_mbps gauge")
	fmt.Fprintf(w, "streambench_fetch_mbps %f\n", rates.FetchMBps)

	// --- Process Resources ---
	fmt.Fprintln(w, "# HELP streambench_process_goroutines Number of goroutines.")
	fmt.Fprintln(w, "# TYPE streambench_process_goroutines gauge")
	fmt.Fprintf(w, "streambench_process_goroutines %d\n", runtime.NumGoroutine())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	fmt.Fprintln(w, "# HELP streambench_process_heap_inuse_bytes Heap memory in use.")
	fmt.Fprintln(w, "# TYPE streambench_process_heap_inuse_bytes gauge")
	fmt.Fprintf(w, "streambench_process_heap_inuse_bytes %d\n", memStats.HeapInuse)
	fmt.Fprintln(w, "# HELP streambench_process_stack_inuse_bytes Stack memory in use.")
	fmt.Fprintln(w, "# TYPE streambench_process_stack_inuse_bytes gauge")
	fmt.Fprintf(w, "streambench_process_stack_inuse_bytes %d\n", memStats.StackInuse)
	fmt.Fprintln(w, "# HELP streambench_process_gc_pause_ns Last GC pause duration (ns).")
	fmt.Fprintln(w, "# TYPE streambench_process_gc_pause_ns gauge")
	lastPauseIdx := (memStats.NumGC + 255) % 256
	fmt.Fprintf(w, "streambench_process_gc_pause_ns %d\n", memStats.PauseNs[lastPauseIdx])

	// --- Call Latency ---
	fmt.Fprint(w, s.bench.RPC().RenderPrometheus())
}
