package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/streambench/internal/bench"
	"github.com/user/streambench/internal/observability"
	"github.com/user/streambench/internal/server"
	"github.com/user/streambench/pkg/streamapi"
)

var version = "dev"

var (
	logLevel   string
	serviceURL string
	authToken  string
	useHTTP2   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "streambench",
	Short: "Write/read throughput benchmark for stream services",
	Long:  "A benchmark that appends records to a fresh stream at a fixed rate while a pool of consumers fetches them back through a shared subscription, reporting throughput for both sides.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the write/read benchmark",
	RunE:  runBench,
}

var (
	streamNamePrefix  string
	replicationFactor int
	backlogDuration   int
	recordSize        int
	batchAgeLimit     time.Duration
	batchBytesLimit   int
	reportInterval    time.Duration
	rateLimit         int
	orderingKeys      int
	totalBytesLimit   int64
	recordType        string
	consumerCount     int
	ackTimeout        int
	fetchBatch        int
	runDuration       time.Duration
	statsAddr         string
	otelEnabled       bool
	otelEndpoint      string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service-url", "http://127.0.0.1:6570", "Stream service base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Bearer token for the service, if required")
	rootCmd.PersistentFlags().BoolVar(&useHTTP2, "http2", true, "Use HTTP/2 cleartext (h2c) for service connections")

	runCmd.Flags().StringVar(&streamNamePrefix, "stream-name-prefix", "write_bench_stream_", "Prefix for the ephemeral benchmark stream name")
	runCmd.Flags().IntVar(&replicationFactor, "replication-factor", 1, "Replication factor for the benchmark stream")
	runCmd.Flags().IntVar(&backlogDuration, "backlog-duration", 60*30, "Stream backlog retention in seconds")
	runCmd.Flags().IntVar(&recordSize, "record-size", 1024, "Payload size in bytes")
	runCmd.Flags().DurationVar(&batchAgeLimit, "batch-age-limit", 10*time.Millisecond, "Max age of a producer batch before it flushes")
	runCmd.Flags().IntVar(&batchBytesLimit, "batch-bytes-limit", 1024*1024, "Max bytes in a producer batch before it flushes")
	runCmd.Flags().DurationVar(&reportInterval, "report-interval", 3*time.Second, "Interval between throughput reports")
	runCmd.Flags().IntVar(&rateLimit, "rate-limit", 100000, "Target append rate in records per second")
	runCmd.Flags().IntVar(&orderingKeys, "ordering-keys", 10, "Number of distinct ordering keys to spread appends over")
	runCmd.Flags().Int64Var(&totalBytesLimit, "total-bytes-limit", -1, "Cap on unacknowledged producer bytes in flight, -1 for unlimited")
	runCmd.Flags().StringVar(&recordType, "record-type", bench.RecordTypeRaw, "Payload kind: raw or hrecord")
	runCmd.Flags().IntVar(&consumerCount, "consumer-count", 1, "Number of consumers sharing one subscription")
	runCmd.Flags().IntVar(&ackTimeout, "ack-timeout", 60, "Subscription ack timeout in seconds")
	runCmd.Flags().IntVar(&fetchBatch, "fetch-batch", 256, "Max records per consumer fetch request")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0, "Stop after this long; 0 runs until interrupted")
	runCmd.Flags().StringVar(&statsAddr, "stats-addr", "", "Bind address for the stats HTTP server; empty disables it")
	runCmd.Flags().BoolVar(&otelEnabled, "otel-enabled", false, "Enable OpenTelemetry tracing")
	runCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP HTTP endpoint (host:port) for traces; if empty uses stdout exporter")

	rootCmd.AddCommand(runCmd)
}

func setupLogging() {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func newClient() *streamapi.Client {
	var opts []streamapi.Option
	if authToken != "" {
		opts = append(opts, streamapi.WithToken(authToken))
	}
	if useHTTP2 {
		opts = append(opts, streamapi.WithHTTP2())
	}
	return streamapi.New(serviceURL, opts...)
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := bench.DefaultConfig()
	cfg.StreamNamePrefix = streamNamePrefix
	cfg.ReplicationFactor = replicationFactor
	cfg.BacklogDuration = backlogDuration
	cfg.RecordSize = recordSize
	cfg.BatchAgeLimit = batchAgeLimit
	cfg.BatchBytesLimit = batchBytesLimit
	cfg.ReportInterval = reportInterval
	cfg.RateLimit = rateLimit
	cfg.OrderingKeys = orderingKeys
	cfg.TotalBytesLimit = totalBytesLimit
	cfg.RecordType = recordType
	cfg.ConsumerCount = consumerCount
	cfg.AckTimeout = ackTimeout
	cfg.FetchBatch = fetchBatch
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("Stream Write/Read Benchmark\n")
	fmt.Printf("  service-url:     %s\n", serviceURL)
	fmt.Printf("  stream-prefix:   %s\n", cfg.StreamNamePrefix)
	fmt.Printf("  record-size:     %d\n", cfg.RecordSize)
	fmt.Printf("  record-type:     %s\n", cfg.RecordType)
	fmt.Printf("  rate-limit:      %d\n", cfg.RateLimit)
	fmt.Printf("  ordering-keys:   %d\n", cfg.OrderingKeys)
	fmt.Printf("  batch-age-limit: %s\n", cfg.BatchAgeLimit)
	fmt.Printf("  batch-bytes:     %d\n", cfg.BatchBytesLimit)
	fmt.Printf("  consumer-count:  %d\n", cfg.ConsumerCount)
	fmt.Printf("  report-interval: %s\n", cfg.ReportInterval)
	if runDuration > 0 {
		fmt.Printf("  duration:        %s\n", runDuration)
	}
	fmt.Println()

	otelShutdown, err := observability.InitTracer(observability.Config{
		Enabled:  otelEnabled,
		Service:  "streambench",
		Version:  version,
		Endpoint: otelEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("otel shutdown error", "error", err)
		}
	}()

	client := newClient()

	// Health check before creating anything on the service.
	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer healthCancel()
	if err := client.Healthz(healthCtx); err != nil {
		return fmt.Errorf("cannot reach service at %s: %w", serviceURL, err)
	}

	b, err := bench.New(client, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if runDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	setupCtx, setupCancel := context.WithTimeout(ctx, 30*time.Second)
	defer setupCancel()
	if err := b.Setup(setupCtx); err != nil {
		return err
	}

	var statsSrv *server.Server
	if statsAddr != "" {
		statsSrv = server.New(b, statsAddr)
		go func() {
			if err := statsSrv.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("stats server error", "error", err)
			}
		}()
	}

	runErr := b.Run(ctx)

	if statsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		if err := statsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("stats server shutdown error", "error", err)
		}
	}
	return runErr
}
