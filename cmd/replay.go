// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/capture"
	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/internal/stats"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Decode a capture file recorded with monitor --record",
	Long: `Read a capture file and display every record as the monitor would.

Inbound records are dispatched to events; outbound records are parsed back
to the commands that produced them. Statistics are printed at the end.

No connection is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&showRaw, "raw", false, "Show a hex dump of every record")
	replayCmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "Show only invalid and unrecognized records")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return err
	}
	h := r.Header()

	fmt.Printf("z21stat - Replay\n")
	fmt.Printf("Capture: %s\n", args[0])
	fmt.Printf("Session: %s\n", h.Session)
	if h.Source != "" {
		fmt.Printf("Source: %s\n", h.Source)
	}
	fmt.Printf("Started: %s\n\n", h.StartTime().Format("2006-01-02 15:04:05"))

	statistics := stats.NewStatistics()
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Capture ends early: %v\n", err)
			break
		}
		replayRecord(rec, statistics)
	}

	fmt.Println()
	fmt.Print(statistics.String())
	return nil
}

// replayRecord prints one captured record and counts it
func replayRecord(rec capture.Record, statistics *stats.Statistics) {
	if rec.Direction == capture.Outbound {
		command, err := z21.ParseCommand(rec.Data)
		if err != nil {
			fmt.Printf("[%s] \033[1;31mSENT (unparsable):\033[0m %v\n", rec.Timestamp().Format("15:04:05.000"), err)
			fmt.Printf("  Data: %s\n\n", z21.FormatHex(rec.Data))
			return
		}
		statistics.RecordSent(command)
		if !errorsOnly {
			fmt.Printf("[%s] -> %s\n", rec.Timestamp().Format("15:04:05.000"), z21.FormatCommand(command))
			if showRaw {
				fmt.Printf("  Data: %s\n", z21.FormatHex(rec.Data))
			}
		}
		return
	}

	// A malformed tail comes back as the last record and dispatches as invalid
	records, _ := z21.SplitRecords(rec.Data)
	for _, raw := range records {
		ev := z21.Dispatch(raw)
		statistics.Update(ev)
		printObservation(client.Observation{Time: rec.Timestamp(), Raw: raw, Event: ev})
	}
}
