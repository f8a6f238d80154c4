// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the command station by requesting its serial number",
	Long: `Send LAN_GET_SERIAL_NUMBER and wait for LAN_SERIAL_NUMBER, reporting the
round-trip time of each request.

This is useful for verifying:
  - The command station is reachable on the configured transport
  - HTTP Basic authentication works (WebSocket bridge)
  - Bidirectional record flow works

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 2, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := startSession(ctx, client.Options{
		RequestTimeout: time.Duration(pingTimeout) * time.Second,
	}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("z21stat - Ping\n")
	fmt.Printf("Connection: %s\n", s.client)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0
	var totalRTT time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		ev, err := s.client.Request(ctx, z21.GetSerialNumber{}, client.Expect[z21.SerialNumber])
		if err != nil {
			if ctx.Err() != nil {
				fmt.Printf("INTERRUPTED\n")
				break
			}
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			rtt := time.Since(startTime)
			totalRTT += rtt
			fmt.Printf("reply from serial %d, rtt=%v\n", ev.(z21.SerialNumber).Value, rtt.Round(time.Microsecond))
			successCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	sent := successCount + failCount
	fmt.Printf("\n--- Ping statistics ---\n")
	if sent > 0 {
		fmt.Printf("%d pings sent, %d replies received, %.0f%% loss\n",
			sent, successCount, float64(failCount)/float64(sent)*100)
	}
	if successCount > 0 {
		fmt.Printf("average rtt=%v\n", (totalRTT / time.Duration(successCount)).Round(time.Microsecond))
	}

	if failCount > 0 {
		s.Close()
		os.Exit(1)
	}
	return nil
}
