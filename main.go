// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// z21stat - Z21 LAN Protocol Monitor and Controller
//
// A CLI tool for monitoring, decoding and driving a Z21 digital command
// station over UDP, serial or a WebSocket bridge.

package main

import (
	"os"

	"github.com/Thermoquad/z21stat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
