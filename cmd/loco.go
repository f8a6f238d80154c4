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
	locoReverse   bool
	locoSteps     int
	locoEmergency bool
)

var locoCmd = &cobra.Command{
	Use:   "loco",
	Short: "Query and drive locomotives",
	Long: `Query and drive locomotives by DCC address (1-9999).

Every subcommand prints the LAN_X_LOCO_INFO the command station reports
afterwards.`,
}

var locoInfoCmd = &cobra.Command{
	Use:   "info ADDR",
	Short: "Show the state of a loco",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocoInfo,
}

var locoDriveCmd = &cobra.Command{
	Use:   "drive ADDR SPEED",
	Short: "Set the speed and direction of a loco",
	Long: `Set the speed and direction of a loco.

SPEED is a step number from 0 (stop) to the maximum of the speed step mode:
14 for 14 steps, 28 for 28 steps and 126 for 128 steps.
Use --emergency to halt the loco immediately; SPEED is then ignored.`,
	Args: cobra.ExactArgs(2),
	RunE: runLocoDrive,
}

var locoFunctionCmd = &cobra.Command{
	Use:   "function ADDR FN on|off|toggle",
	Short: "Switch a loco function (F0-F31)",
	Args:  cobra.ExactArgs(3),
	RunE:  runLocoFunction,
}

func init() {
	rootCmd.AddCommand(locoCmd)
	locoCmd.AddCommand(locoInfoCmd, locoDriveCmd, locoFunctionCmd)

	locoDriveCmd.Flags().BoolVarP(&locoReverse, "reverse", "r", false, "Drive in reverse")
	locoDriveCmd.Flags().IntVar(&locoSteps, "steps", 128, "Speed steps (14, 28 or 128)")
	locoDriveCmd.Flags().BoolVarP(&locoEmergency, "emergency", "e", false, "Emergency stop this loco")
}

func parseLocoAddress(arg string) (uint16, error) {
	v, err := parseUint(arg, "loco address", 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// locoRequest sends command and waits for the loco info of addr
func locoRequest(cmd *cobra.Command, command z21.Command, addr uint16) error {
	ev, err := request(cmd.Context(), command, client.ExpectLoco(addr))
	if err != nil {
		return err
	}
	fmt.Println(z21.FormatEvent(ev))
	return nil
}

func runLocoInfo(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}
	command, err := z21.NewGetLocoInfo(addr)
	if err != nil {
		return err
	}
	return locoRequest(cmd, command, addr)
}

// parseSpeedSteps checks the --steps value before it is narrowed to a byte
func parseSpeedSteps(n int) (z21.SpeedSteps, error) {
	steps := z21.SpeedSteps(n)
	if n < 0 || n > 255 || !steps.Valid() {
		return 0, fmt.Errorf("invalid speed steps %d (use 14, 28 or 128)", n)
	}
	return steps, nil
}

func runLocoDrive(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}
	speed, err := parseUint(args[1], "speed", 8)
	if err != nil {
		return err
	}
	steps, err := parseSpeedSteps(locoSteps)
	if err != nil {
		return err
	}

	dir := z21.Forward
	if locoReverse {
		dir = z21.Reverse
	}

	var command z21.SetLocoDrive
	if locoEmergency {
		command, err = z21.NewLocoEmergencyStop(addr, steps, dir)
	} else {
		command, err = z21.NewSetLocoDrive(addr, steps, dir, uint8(speed))
	}
	if err != nil {
		return err
	}
	return locoRequest(cmd, command, addr)
}

func runLocoFunction(cmd *cobra.Command, args []string) error {
	addr, err := parseLocoAddress(args[0])
	if err != nil {
		return err
	}
	fn, err := parseUint(args[1], "function", 8)
	if err != nil {
		return err
	}

	var action z21.FunctionAction
	switch args[2] {
	case "on":
		action = z21.FunctionOn
	case "off":
		action = z21.FunctionOff
	case "toggle":
		action = z21.FunctionToggle
	default:
		return fmt.Errorf("unknown function action %q (use on, off or toggle)", args[2])
	}

	command, err := z21.NewSetLocoFunction(addr, uint8(fn), action)
	if err != nil {
		return err
	}
	return locoRequest(cmd, command, addr)
}
