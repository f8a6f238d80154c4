// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var powerCmd = &cobra.Command{
	Use:   "power on|off|stop|status",
	Short: "Switch track power or show the central state",
	Long: `Control track power on the command station.

  on      LAN_X_SET_TRACK_POWER_ON
  off     LAN_X_SET_TRACK_POWER_OFF
  stop    LAN_X_SET_STOP (emergency stop: all locos halt, power stays on)
  status  LAN_X_GET_STATUS`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "stop", "status"},
	RunE:      runPower,
}

func init() {
	rootCmd.AddCommand(powerCmd)
}

func runPower(cmd *cobra.Command, args []string) error {
	var command z21.Command
	switch args[0] {
	case "on":
		command = z21.SetTrackPowerOn{}
	case "off":
		command = z21.SetTrackPowerOff{}
	case "stop":
		command = z21.SetStop{}
	case "status":
		command = z21.GetStatus{}
	default:
		return fmt.Errorf("unknown power action %q (use on, off, stop or status)", args[0])
	}

	ev, err := request(cmd.Context(), command, client.ExpectTrackPower)
	if err != nil {
		return err
	}

	fmt.Println(z21.FormatEvent(ev))
	if status, ok := ev.(z21.StatusChanged); ok {
		printCentralState(status.EmergencyStop(), status.TrackVoltageOff(), status.ShortCircuit(), status.ProgrammingMode())
	}
	return nil
}

func printCentralState(estop, voltageOff, short, programming bool) {
	fmt.Printf("  Track power:      %s\n", onOff(!voltageOff))
	fmt.Printf("  Emergency stop:   %s\n", onOff(estop))
	fmt.Printf("  Short circuit:    %s\n", onOff(short))
	fmt.Printf("  Programming mode: %s\n", onOff(programming))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
