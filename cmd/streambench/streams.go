package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var streamsCmd = &cobra.Command{
	Use:   "streams",
	Short: "Inspect and clean up streams on the service",
}

var streamsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List streams",
	RunE:  runStreamsList,
}

var (
	cleanupAll    bool
	cleanupPrefix string
)

var streamsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete leftover benchmark streams",
	RunE:  runStreamsCleanup,
}

func init() {
	streamsCleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "Delete every stream on the service, not just benchmark ones")
	streamsCleanupCmd.Flags().StringVar(&cleanupPrefix, "prefix", "write_bench_stream_", "Only delete streams whose name carries this prefix")

	streamsCmd.AddCommand(streamsListCmd)
	streamsCmd.AddCommand(streamsCleanupCmd)
	rootCmd.AddCommand(streamsCmd)
}

func runStreamsList(cmd *cobra.Command, args []string) error {
	client := newClient()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	streams, err := client.ListStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}
	if len(streams) == 0 {
		fmt.Println("no streams")
		return nil
	}
	for _, st := range streams {
		fmt.Printf("%s\treplication=%d\tbacklog=%ds\n", st.Name, st.ReplicationFactor, st.BacklogDuration)
	}
	return nil
}

func runStreamsCleanup(cmd *cobra.Command, args []string) error {
	client := newClient()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	streams, err := client.ListStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	deleted := 0
	for _, st := range streams {
		if !cleanupAll && !strings.HasPrefix(st.Name, cleanupPrefix) {
			continue
		}
		if err := client.DeleteStream(ctx, st.Name); err != nil {
			slog.Warn("delete stream failed", "stream", st.Name, "error", err)
			continue
		}
		deleted++
	}
	fmt.Printf("deleted %d of %d streams\n", deleted, len(streams))
	return nil
}
