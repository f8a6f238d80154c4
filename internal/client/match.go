// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package client

import "github.com/Thermoquad/z21stat/pkg/z21"

// Expect matches any event of type T
func Expect[T z21.Event](ev z21.Event) bool {
	_, ok := ev.(T)
	return ok
}

// ExpectLoco matches LAN_X_LOCO_INFO for addr
func ExpectLoco(addr uint16) func(z21.Event) bool {
	return func(ev z21.Event) bool {
		info, ok := ev.(z21.LocoInfo)
		return ok && info.Address == addr
	}
}

// ExpectTurnout matches LAN_X_TURNOUT_INFO for addr
func ExpectTurnout(addr uint16) func(z21.Event) bool {
	return func(ev z21.Event) bool {
		info, ok := ev.(z21.TurnoutInfo)
		return ok && info.Address == addr
	}
}

// ExpectRMBus matches LAN_RMBUS_DATACHANGED for group
func ExpectRMBus(group uint8) func(z21.Event) bool {
	return func(ev z21.Event) bool {
		data, ok := ev.(z21.RMBusDataChanged)
		return ok && data.Group == group
	}
}

// ExpectTrackPower matches the replies to the power commands: track power
// on or off, emergency stop, and the status replies.
func ExpectTrackPower(ev z21.Event) bool {
	switch ev.(type) {
	case z21.TrackPowerOn, z21.TrackPowerOff, z21.Stopped, z21.StatusChanged, z21.ShortCircuit, z21.ProgrammingMode:
		return true
	}
	return false
}
