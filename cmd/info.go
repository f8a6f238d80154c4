// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/z21stat/internal/client"
	"github.com/Thermoquad/z21stat/pkg/z21"
)

var infoMinFirmware string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show command station identity, versions and settings",
	Long: `Query the command station for its serial number, X-Bus version, firmware
version, hardware type, feature code and the broadcast flags of this session.

A warning is printed when the firmware does not satisfy --min-firmware.`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&infoMinFirmware, "min-firmware", ">= 1.20", "Firmware version constraint to warn about")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := startSession(ctx, client.Options{}, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Connection: %s\n", s.client)

	queries := []struct {
		command z21.Command
		match   func(z21.Event) bool
	}{
		{z21.GetSerialNumber{}, client.Expect[z21.SerialNumber]},
		{z21.GetVersion{}, client.Expect[z21.VersionInfo]},
		{z21.GetFirmwareVersion{}, client.Expect[z21.FirmwareVersion]},
		{z21.GetHwInfo{}, client.Expect[z21.HwInfo]},
		{z21.GetCode{}, client.Expect[z21.Code]},
		{z21.GetBroadcastFlags{}, client.Expect[z21.BroadcastFlags]},
	}

	answered := 0
	for _, q := range queries {
		ev, err := s.client.Request(ctx, q.command, q.match)
		if err != nil {
			if errors.Is(err, client.ErrNoReply) {
				fmt.Printf("  %-24s no reply\n", q.command.Name())
				continue
			}
			return err
		}
		answered++
		printInfo(ev)
	}

	if answered == 0 {
		return fmt.Errorf("no reply from %s", s.client)
	}
	return nil
}

func printInfo(ev z21.Event) {
	switch ev := ev.(type) {
	case z21.SerialNumber:
		fmt.Printf("  Serial number:    %d\n", ev.Value)
	case z21.VersionInfo:
		fmt.Printf("  X-Bus version:    %s\n", ev.Version())
		fmt.Printf("  Station ID:       0x%02X\n", ev.CommandStationID)
	case z21.FirmwareVersion:
		fmt.Printf("  Firmware:         %d.%02d\n", ev.Major, ev.Minor)
		warnFirmware(ev)
	case z21.HwInfo:
		fmt.Printf("  Hardware:         %s (firmware %d.%02d)\n", ev.HardwareType, ev.FirmwareMajor, ev.FirmwareMinor)
	case z21.Code:
		fmt.Printf("  Feature code:     %s\n", ev.Code)
	case z21.BroadcastFlags:
		fmt.Printf("  Broadcast flags:  0x%08X [%s]\n", ev.Flags, z21.FormatBroadcastFlags(ev.Flags))
	default:
		fmt.Printf("  %s\n", z21.FormatEvent(ev))
	}
}

func warnFirmware(ev z21.FirmwareVersion) {
	if infoMinFirmware == "" {
		return
	}
	ok, err := z21.FirmwareSatisfies(ev.Semver(), infoMinFirmware)
	if err != nil {
		fmt.Printf("  \033[1;33mWARNING:\033[0m %v\n", err)
		return
	}
	if !ok {
		fmt.Printf("  \033[1;33mWARNING:\033[0m firmware %s does not satisfy %q\n", ev.Semver(), infoMinFirmware)
	}
}
