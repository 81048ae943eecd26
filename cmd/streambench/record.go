package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/streambench/internal/bench"
)

var (
	sampleSize int
	sampleType string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Print a sample payload for a given size and type",
	RunE:  runRecord,
}

func init() {
	recordCmd.Flags().IntVar(&sampleSize, "record-size", 1024, "Payload size in bytes")
	recordCmd.Flags().StringVar(&sampleType, "record-type", bench.RecordTypeRaw, "Payload kind: raw or hrecord")

	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg := bench.DefaultConfig()
	cfg.RecordSize = sampleSize
	cfg.RecordType = sampleType
	if err := cfg.Validate(); err != nil {
		return err
	}

	rec := bench.MakeRecord(cfg)
	if err := bench.ValidateStructured(rec); err != nil {
		return fmt.Errorf("payload failed validation: %w", err)
	}

	if rec.IsRaw() {
		fmt.Printf("raw payload: %d random bytes, first 16: %x\n", len(rec.Raw), rec.Raw[:min(16, len(rec.Raw))])
		return nil
	}
	out, err := json.MarshalIndent(rec.HRecord, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("hrecord payload (%d bytes encoded):\n%s\n", rec.PayloadSize(), out)
	return nil
}
