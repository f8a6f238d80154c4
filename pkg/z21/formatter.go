// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"errors"
	"fmt"
	"strings"
)

// FormatEvent formats an event into a single human-readable line
func FormatEvent(e Event) string {
	if e == nil {
		return "<nil>"
	}
	details := FormatEventDetails(e)
	if details == "" {
		return e.Name()
	}
	return e.Name() + " " + details
}

// FormatEventDetails formats the fields of an event, without its name
func FormatEventDetails(e Event) string {
	switch e := e.(type) {
	case SerialNumber:
		return fmt.Sprintf("serial=%d", e.Value)

	case VersionInfo:
		return fmt.Sprintf("xbus=%s station=%s", e.Version(), formatStationID(e.CommandStationID))

	case StatusChanged:
		return "state=" + formatCentralState(e.CentralState, 0)

	case FirmwareVersion:
		return fmt.Sprintf("firmware=%d.%02d", e.Major, e.Minor)

	case BroadcastFlags:
		return fmt.Sprintf("flags=0x%08X [%s]", e.Flags, FormatBroadcastFlags(e.Flags))

	case SystemStateChanged:
		return fmt.Sprintf("main=%dmA prog=%dmA filtered=%dmA temp=%d°C supply=%dmV vcc=%dmV state=%s",
			e.MainCurrent, e.ProgCurrent, e.FilteredMainCurrent, e.Temperature,
			e.SupplyVoltage, e.VCCVoltage, formatCentralState(e.CentralState, e.CentralStateEx))

	case HwInfo:
		return fmt.Sprintf("hardware=%s firmware=%d.%02d", e.HardwareType, e.FirmwareMajor, e.FirmwareMinor)

	case Code:
		return "code=" + e.Code.String()

	case LocoInfo:
		return formatLocoInfo(e)

	case TurnoutInfo:
		return fmt.Sprintf("turnout=%d state=%s", e.Address, e.State)

	case RMBusDataChanged:
		parts := make([]string, 0, RMBusModulesInGroup)
		for i, b := range e.Feedback {
			parts = append(parts, fmt.Sprintf("%d:%08b", e.Module(i), b))
		}
		return fmt.Sprintf("group=%d %s", e.Group, strings.Join(parts, " "))

	case UnrecognizedMessage:
		return "raw=" + FormatHex(e.Raw)

	case InvalidMessage:
		return fmt.Sprintf("reason=%q raw=%s", e.Error(), FormatHex(e.Raw))
	}

	return ""
}

func formatLocoInfo(e LocoInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "loco=%d %s steps=%d", e.Address, e.Direction, e.SpeedSteps)
	if e.EmergencyStop {
		b.WriteString(" speed=ESTOP")
	} else {
		fmt.Fprintf(&b, " speed=%d", e.Speed)
	}
	if e.Busy {
		b.WriteString(" busy")
	}
	if e.DoubleTraction {
		b.WriteString(" double-traction")
	}
	if e.SmartSearch {
		b.WriteString(" smart-search")
	}
	b.WriteString(" functions=[" + FormatFunctions(e.Functions) + "]")
	return b.String()
}

// FormatFunctions lists the active functions of a function bitmask, e.g. "F0 F3"
func FormatFunctions(functions uint32) string {
	var on []string
	for i := 0; i <= MaxFunctionIndex; i++ {
		if functions&(1<<uint(i)) != 0 {
			on = append(on, fmt.Sprintf("F%d", i))
		}
	}
	return strings.Join(on, " ")
}

// FormatBroadcastFlags names the set bits of a broadcast flag mask
func FormatBroadcastFlags(flags uint32) string {
	var names []string
	if flags&BroadcastDriving != 0 {
		names = append(names, "driving")
	}
	if flags&BroadcastRMBus != 0 {
		names = append(names, "rmbus")
	}
	if flags&BroadcastSystemState != 0 {
		names = append(names, "systemstate")
	}
	if flags&BroadcastAllLocos != 0 {
		names = append(names, "all-locos")
	}
	return strings.Join(names, " ")
}

func formatCentralState(state, stateEx byte) string {
	var names []string
	if state&CentralEmergencyStop != 0 {
		names = append(names, "ESTOP")
	}
	if state&CentralTrackVoltageOff != 0 {
		names = append(names, "TRACK_OFF")
	}
	if state&CentralShortCircuit != 0 {
		names = append(names, "SHORT")
	}
	if state&CentralProgrammingMode != 0 {
		names = append(names, "PROG")
	}
	if stateEx&CentralExHighTemperature != 0 {
		names = append(names, "HIGH_TEMP")
	}
	if stateEx&CentralExPowerLost != 0 {
		names = append(names, "POWER_LOST")
	}
	if stateEx&CentralExShortCircuitExternal != 0 {
		names = append(names, "SHORT_EXT")
	}
	if stateEx&CentralExShortCircuitInternal != 0 {
		names = append(names, "SHORT_INT")
	}
	if len(names) == 0 {
		return "OK"
	}
	return strings.Join(names, "|")
}

func formatStationID(id byte) string {
	switch id {
	case CommandStationZ21:
		return "Z21"
	case CommandStationZ21Small:
		return "z21"
	}
	return fmt.Sprintf("0x%02X", id)
}

// FormatCommand formats a command into a single human-readable line
func FormatCommand(c Command) string {
	if c == nil {
		return "<nil>"
	}

	var details string
	switch c := c.(type) {
	case SetBroadcastFlags:
		details = fmt.Sprintf("flags=0x%08X [%s]", c.Flags(), FormatBroadcastFlags(c.Flags()))
	case GetLocoInfo:
		details = fmt.Sprintf("loco=%d", c.Address())
	case SetLocoDrive:
		speed := fmt.Sprintf("%d", c.Speed())
		if c.EmergencyStop() {
			speed = "ESTOP"
		}
		details = fmt.Sprintf("loco=%d %s steps=%d speed=%s", c.Address(), c.Direction(), c.SpeedSteps(), speed)
	case SetLocoFunction:
		details = fmt.Sprintf("loco=%d F%d %s", c.Address(), c.Function(), c.Action())
	case GetTurnoutInfo:
		details = fmt.Sprintf("turnout=%d", c.Address())
	case SetTurnout:
		details = fmt.Sprintf("turnout=%d output=%d activate=%t queue=%t",
			c.Address(), c.Output()+1, c.Activate(), c.Queue())
	case GetRMBusData:
		details = fmt.Sprintf("group=%d", c.Group())
	}

	if details == "" {
		return c.Name()
	}
	return c.Name() + " " + details
}

// FormatHeader returns the human-readable name for an envelope header
func FormatHeader(header uint16) string {
	switch header {
	case HeaderGetSerialNumber:
		return "LAN_GET_SERIAL_NUMBER"
	case HeaderGetCode:
		return "LAN_GET_CODE"
	case HeaderGetHwInfo:
		return "LAN_GET_HWINFO"
	case HeaderLogOff:
		return "LAN_LOGOFF"
	case HeaderXBus:
		return "LAN_X"
	case HeaderSetBroadcastFlags:
		return "LAN_SET_BROADCASTFLAGS"
	case HeaderGetBroadcastFlags:
		return "LAN_GET_BROADCASTFLAGS"
	case HeaderRMBusDataChanged:
		return "LAN_RMBUS_DATACHANGED"
	case HeaderRMBusGetData:
		return "LAN_RMBUS_GETDATA"
	case HeaderSystemStateChanged:
		return "LAN_SYSTEMSTATE_DATACHANGED"
	case HeaderSystemStateGetData:
		return "LAN_SYSTEMSTATE_GETDATA"
	default:
		return "UNKNOWN"
	}
}

// FormatHex formats bytes as space-separated hex, e.g. "07 00 40 00"
func FormatHex(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// FormatReason returns a short classification of an InvalidMessage reason,
// suitable as a metrics label.
func FormatReason(err error) string {
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, ErrTruncatedFrame):
		return "truncated"
	case errors.Is(err, ErrLengthMismatch):
		return "length"
	case errors.Is(err, ErrPayloadLength):
		return "payload_length"
	case errors.Is(err, ErrFieldValue):
		return "field"
	}
	return "other"
}
