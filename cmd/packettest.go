// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid Z21 record",
	Long: `Wait for a valid Z21 record on the connection until timeout.

This command connects over UDP, serial or WebSocket, asks the command station
for its status and waits for any valid Z21 record. Invalid and unrecognized
records are counted and ignored.

Exit codes:
  0 - Record received before timeout
  1 - Timeout reached without receiving a valid record
  2 - Connection error

Useful for testing connectivity to a Z21 or a WebSocket bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a record")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Channel for record reception
	recordChan := make(chan client.Observation, 1)
	var invalidRecords atomic.Int32

	s, err := startSession(ctx, client.Options{}, func(o client.Observation) {
		switch o.Event.(type) {
		case z21.InvalidMessage, z21.UnrecognizedMessage:
			invalidRecords.Add(1)
			return
		}
		select {
		case recordChan <- o:
		default:
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("z21stat - Packet Test\n")
	fmt.Printf("Connection: %s\n", s.client)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid Z21 record...\n\n")

	// A broadcast may never come on a quiet layout, so ask for one
	if err := s.client.Send(ctx, z21.GetStatus{}); err != nil {
		fmt.Fprintf(os.Stderr, "Send error: %v\n", err)
		s.Close()
		os.Exit(2)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- s.Wait() }()

	// Wait for record or timeout
	select {
	case o := <-recordChan:
		s.Close()
		if n := invalidRecords.Load(); n > 0 {
			fmt.Printf("(skipped %d invalid records)\n", n)
		}
		fmt.Printf("SUCCESS: Received valid record\n")
		fmt.Printf("  Message: %s\n", z21.FormatEvent(o.Event))
		fmt.Printf("  Length: %d bytes\n", len(o.Raw))
		fmt.Printf("  Data: %s\n", z21.FormatHex(o.Raw))
		os.Exit(0)

	case err := <-waitErr:
		s.Close()
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(packetTestTimeout) * time.Second):
		s.Close()
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid record received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
