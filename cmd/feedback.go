// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback GROUP",
	Short: "Show R-Bus feedback occupancy for a module group",
	Long: `Request LAN_RMBUS_GETDATA for GROUP (0 = modules 1-10, 1 = modules 11-20)
and show the occupancy of every input.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	group, err := parseUint(args[0], "group", 8)
	if err != nil {
		return err
	}
	command, err := z21.NewGetRMBusData(uint8(group))
	if err != nil {
		return err
	}

	ev, err := request(cmd.Context(), command, client.ExpectRMBus(uint8(group)))
	if err != nil {
		return err
	}
	data := ev.(z21.RMBusDataChanged)

	fmt.Printf("R-Bus group %d\n", data.Group)
	fmt.Printf("  Module  Inputs 1-8\n")
	for i := range data.Feedback {
		var inputs strings.Builder
		for input := 1; input <= 8; input++ {
			if data.Input(i, input) {
				inputs.WriteString(" #")
			} else {
				inputs.WriteString(" .")
			}
		}
		fmt.Printf("  %6d %s\n", data.Module(i), inputs.String())
	}
	return nil
}
