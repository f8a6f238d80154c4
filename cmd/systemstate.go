// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var systemStateCmd = &cobra.Command{
	Use:   "systemstate",
	Short: "Show currents, voltages, temperature and central state",
	RunE:  runSystemState,
}

func init() {
	rootCmd.AddCommand(systemStateCmd)
}

func runSystemState(cmd *cobra.Command, args []string) error {
	ev, err := request(cmd.Context(), z21.GetSystemState{}, client.Expect[z21.SystemStateChanged])
	if err != nil {
		return err
	}
	state := ev.(z21.SystemStateChanged)
	printSystemState(state)
	return nil
}

func printSystemState(s z21.SystemStateChanged) {
	fmt.Printf("System state\n")
	fmt.Printf("  Main current:     %d mA (filtered %d mA)\n", s.MainCurrent, s.FilteredMainCurrent)
	fmt.Printf("  Prog current:     %d mA\n", s.ProgCurrent)
	fmt.Printf("  Temperature:      %d °C\n", s.Temperature)
	fmt.Printf("  Supply voltage:   %d mV\n", s.SupplyVoltage)
	fmt.Printf("  Track voltage:    %d mV\n", s.VCCVoltage)
	printCentralState(s.EmergencyStop(), s.TrackVoltageOff(), s.ShortCircuit(), s.ProgrammingMode())
	fmt.Printf("  High temperature: %s\n", onOff(s.HighTemperature()))
	fmt.Printf("  Power lost:       %s\n", onOff(s.PowerLost()))
	fmt.Printf("  Capabilities:     0x%02X\n", s.Capabilities)
}
