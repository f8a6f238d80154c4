// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var (
	turnoutDeactivate bool
	turnoutQueue      bool
)

var turnoutCmd = &cobra.Command{
	Use:   "turnout",
	Short: "Query and switch turnouts",
	Long:  `Query and switch accessory decoder outputs by turnout address (1-2048).`,
}

var turnoutInfoCmd = &cobra.Command{
	Use:   "info ADDR",
	Short: "Show the last switched output of a turnout",
	Args:  cobra.ExactArgs(1),
	RunE:  runTurnoutInfo,
}

var turnoutSetCmd = &cobra.Command{
	Use:   "set ADDR 1|2",
	Short: "Switch a turnout to output 1 or 2",
	Long: `Activate output 1 or 2 of a turnout. Most decoders need the output
deactivated again afterwards; use --deactivate for the second command.`,
	Args: cobra.ExactArgs(2),
	RunE: runTurnoutSet,
}

func init() {
	rootCmd.AddCommand(turnoutCmd)
	turnoutCmd.AddCommand(turnoutInfoCmd, turnoutSetCmd)

	turnoutSetCmd.Flags().BoolVar(&turnoutDeactivate, "deactivate", false, "Deactivate the output instead of activating it")
	turnoutSetCmd.Flags().BoolVar(&turnoutQueue, "queue", false, "Queue the command in the station (Z21 firmware 1.24+)")
}

func parseTurnoutAddress(arg string) (uint16, error) {
	v, err := parseUint(arg, "turnout address", 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func turnoutRequest(cmd *cobra.Command, command z21.Command, addr uint16) error {
	ev, err := request(cmd.Context(), command, client.ExpectTurnout(addr))
	if err != nil {
		return err
	}
	fmt.Println(z21.FormatEvent(ev))
	return nil
}

func runTurnoutInfo(cmd *cobra.Command, args []string) error {
	addr, err := parseTurnoutAddress(args[0])
	if err != nil {
		return err
	}
	command, err := z21.NewGetTurnoutInfo(addr)
	if err != nil {
		return err
	}
	return turnoutRequest(cmd, command, addr)
}

func runTurnoutSet(cmd *cobra.Command, args []string) error {
	addr, err := parseTurnoutAddress(args[0])
	if err != nil {
		return err
	}

	var output z21.TurnoutOutput
	switch args[1] {
	case "1":
		output = z21.TurnoutOutput1
	case "2":
		output = z21.TurnoutOutput2
	default:
		return fmt.Errorf("invalid output %q (use 1 or 2)", args[1])
	}

	command, err := z21.NewSetTurnout(addr, output, !turnoutDeactivate, turnoutQueue)
	if err != nil {
		return err
	}
	return turnoutRequest(cmd, command, addr)
}
