// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var flagsCmd = &cobra.Command{
	Use:   "flags get|set [FLAGS]",
	Short: "Show or set the broadcast flags of a session",
	Long: `Show or set LAN broadcast flags.

Flags apply to the session that sets them, so "set" is mostly useful to
check how the command station answers a subscription: it sets FLAGS and
reads them back on the same session. FLAGS defaults to the configured
broadcast_flags.

  0x00000001  driving and switching
  0x00000002  R-Bus feedback
  0x00000100  system state
  0x00010000  all loco info`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"get", "set"},
	RunE:      runFlags,
}

func init() {
	rootCmd.AddCommand(flagsCmd)
}

func runFlags(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := startSession(ctx, client.Options{}, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	switch args[0] {
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("flags get takes no value")
		}
	case "set":
		flags := settings.BroadcastFlags
		if len(args) == 2 {
			v, err := parseUint(args[1], "broadcast flags", 32)
			if err != nil {
				return err
			}
			flags = uint32(v)
		}
		if err := s.client.Subscribe(ctx, flags); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown flags action %q (use get or set)", args[0])
	}

	ev, err := s.client.Request(ctx, z21.GetBroadcastFlags{}, client.Expect[z21.BroadcastFlags])
	if err != nil {
		return err
	}
	fmt.Println(z21.FormatEvent(ev))
	return nil
}
