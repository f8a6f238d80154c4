// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var decodeCommands bool

var decodeCmd = &cobra.Command{
	Use:   "decode [HEX...]",
	Short: "Decode hex-dumped Z21 datagrams",
	Long: `Decode Z21 datagrams written as hex and display them in human-readable form.

Each argument is one datagram. Without arguments, one datagram per line is read
from standard input. Bytes may be separated by spaces, colons or nothing:

  z21stat decode "07 00 40 00 21 81 A0"
  z21stat decode < datagrams.txt

Blank lines and lines starting with # are skipped.
Datagrams holding several records are split first. Use --commands to decode
client-to-station traffic instead of station replies and broadcasts.`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeCommands, "commands", false, "Decode as commands sent to the station")
	decodeCmd.Flags().BoolVar(&showRaw, "raw", false, "Show raw record bytes")
}

func runDecode(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		for _, arg := range args {
			if err := decodeLine(arg); err != nil {
				return err
			}
		}
		return nil
	}
	return decodeStream(cmd.InOrStdin())
}

func decodeStream(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := decodeLine(line); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lineNo, err)
		}
	}
	return scanner.Err()
}

// parseHex accepts "07 00 40 00", "07:00:40:00" and "07004000"
func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "", "\t", "", "0x", "", "0X", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %v", err)
	}
	return data, nil
}

func decodeLine(line string) error {
	datagram, err := parseHex(line)
	if err != nil {
		return err
	}

	records, err := z21.SplitRecords(datagram)
	if err != nil {
		fmt.Printf("[WARN] %v\n", err)
	}

	now := time.Now()
	for _, record := range records {
		if decodeCommands {
			c, err := z21.ParseCommand(record)
			if err != nil {
				fmt.Printf("\033[1;31mNOT A COMMAND:\033[0m %v\n", err)
				fmt.Printf("  Data: %s\n\n", z21.FormatHex(record))
				continue
			}
			fmt.Printf("%s\n", z21.FormatCommand(c))
			if showRaw {
				fmt.Printf("  Data: %s\n", z21.FormatHex(record))
			}
			continue
		}
		printObservation(client.Observation{Time: now, Raw: record, Event: z21.Dispatch(record)})
	}
	return nil
}
