// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import "fmt"

// Event is the decoded result of one inbound record. The set of
// implementations is closed; Dispatch returns exactly one of them.
type Event interface {
	// Name returns the protocol name, e.g. "LAN_X_BC_TRACK_POWER_OFF".
	Name() string
	isEvent()
}

// SerialNumber is the reply to LAN_GET_SERIAL_NUMBER.
type SerialNumber struct {
	Value uint32
}

// VersionInfo is LAN_X_GET_VERSION's reply.
type VersionInfo struct {
	XBusVersion      byte // one BCD digit per nibble, 0x30 = 3.0
	CommandStationID byte // CommandStationZ21 or CommandStationZ21Small
}

// Version formats the X-Bus version as "major.minor".
func (v VersionInfo) Version() string {
	return fmt.Sprintf("%d.%d", v.XBusVersion>>4, v.XBusVersion&0x0F)
}

// TrackPowerOff is LAN_X_BC_TRACK_POWER_OFF.
type TrackPowerOff struct{}

// TrackPowerOn is LAN_X_BC_TRACK_POWER_ON.
type TrackPowerOn struct{}

// ProgrammingMode is LAN_X_BC_PROGRAMMING_MODE.
type ProgrammingMode struct{}

// ShortCircuit is LAN_X_BC_TRACK_SHORT_CIRCUIT.
type ShortCircuit struct{}

// UnknownCommand is LAN_X_UNKNOWN_COMMAND, sent for X-Bus requests the
// command station did not understand.
type UnknownCommand struct{}

// Stopped is LAN_X_BC_STOPPED (emergency stop of all locos).
type Stopped struct{}

// StatusChanged is LAN_X_STATUS_CHANGED.
type StatusChanged struct {
	CentralState byte
}

// EmergencyStop reports whether all locos are stopped.
func (s StatusChanged) EmergencyStop() bool {
	return s.CentralState&CentralEmergencyStop != 0
}

// TrackVoltageOff reports whether track power is off.
func (s StatusChanged) TrackVoltageOff() bool {
	return s.CentralState&CentralTrackVoltageOff != 0
}

// ShortCircuit reports a short circuit on the track.
func (s StatusChanged) ShortCircuit() bool {
	return s.CentralState&CentralShortCircuit != 0
}

// ProgrammingMode reports whether the programming track is active.
func (s StatusChanged) ProgrammingMode() bool {
	return s.CentralState&CentralProgrammingMode != 0
}

// FirmwareVersion is LAN_X_GET_FIRMWARE_VERSION's reply, decoded from BCD.
type FirmwareVersion struct {
	Major int
	Minor int
}

// BroadcastFlags is LAN_GET_BROADCASTFLAGS's reply.
type BroadcastFlags struct {
	Flags uint32
}

// SystemStateChanged is LAN_SYSTEMSTATE_DATACHANGED.
// Currents are in mA, voltages in mV, temperature in degrees C.
type SystemStateChanged struct {
	MainCurrent         int16
	ProgCurrent         int16
	FilteredMainCurrent int16
	Temperature         int16
	SupplyVoltage       uint16
	VCCVoltage          uint16
	CentralState        byte
	CentralStateEx      byte
	Capabilities        byte
}

// EmergencyStop reports whether all locos are stopped.
func (s SystemStateChanged) EmergencyStop() bool {
	return s.CentralState&CentralEmergencyStop != 0
}

// TrackVoltageOff reports whether track power is off.
func (s SystemStateChanged) TrackVoltageOff() bool {
	return s.CentralState&CentralTrackVoltageOff != 0
}

// ShortCircuit reports a short circuit on the track.
func (s SystemStateChanged) ShortCircuit() bool {
	return s.CentralState&CentralShortCircuit != 0
}

// ProgrammingMode reports whether the programming track is active.
func (s SystemStateChanged) ProgrammingMode() bool {
	return s.CentralState&CentralProgrammingMode != 0
}

// HighTemperature reports that the station is overheating.
func (s SystemStateChanged) HighTemperature() bool {
	return s.CentralStateEx&CentralExHighTemperature != 0
}

// PowerLost reports that the input voltage is too low.
func (s SystemStateChanged) PowerLost() bool {
	return s.CentralStateEx&CentralExPowerLost != 0
}

// HwInfo is LAN_GET_HWINFO's reply.
type HwInfo struct {
	HardwareType  HardwareType
	FirmwareMajor int
	FirmwareMinor int
}

// Code is LAN_GET_CODE's reply.
type Code struct {
	Code FeatureCode
}

// LocoInfo is LAN_X_LOCO_INFO, sent in reply to LAN_X_GET_LOCO_INFO and
// broadcast whenever a subscribed loco changes.
type LocoInfo struct {
	Address        uint16
	Busy           bool // controlled by another client
	SpeedSteps     SpeedSteps
	Direction      Direction
	Speed          uint8
	EmergencyStop  bool
	DoubleTraction bool
	SmartSearch    bool
	Functions      uint32 // bit n = Fn
}

// Function reports whether function n (0..31) is on.
func (l LocoInfo) Function(n int) bool {
	if n < 0 || n > MaxFunctionIndex {
		return false
	}
	return l.Functions&(1<<uint(n)) != 0
}

// TurnoutInfo is LAN_X_TURNOUT_INFO.
type TurnoutInfo struct {
	Address uint16 // 1-based
	State   TurnoutState
}

// RMBusDataChanged is LAN_RMBUS_DATACHANGED: the occupancy inputs of the ten
// feedback modules in one group.
type RMBusDataChanged struct {
	Group    uint8
	Feedback [RMBusModulesInGroup]byte
}

// Module returns the absolute module number (1..20) of feedback byte i.
func (r RMBusDataChanged) Module(i int) int {
	return int(r.Group)*RMBusModulesInGroup + i + 1
}

// Input reports whether input (1..8) of feedback byte i (0..9) is occupied.
func (r RMBusDataChanged) Input(i, input int) bool {
	if i < 0 || i >= RMBusModulesInGroup || input < 1 || input > 8 {
		return false
	}
	return r.Feedback[i]&(1<<uint(input-1)) != 0
}

// UnrecognizedMessage is a well-formed record that matches no known variant.
// Raw holds the record unchanged.
type UnrecognizedMessage struct {
	Raw []byte
}

// InvalidMessage is a record that failed envelope, checksum, length or field
// validation. Reason wraps one of the Err* sentinels.
type InvalidMessage struct {
	Reason error
	Raw    []byte
}

// Error implements the error interface
func (m InvalidMessage) Error() string {
	if m.Reason == nil {
		return "invalid message"
	}
	return m.Reason.Error()
}

// Unwrap lets errors.Is inspect the reason through the event.
func (m InvalidMessage) Unwrap() error { return m.Reason }

func (SerialNumber) Name() string        { return "LAN_SERIAL_NUMBER" }
func (VersionInfo) Name() string         { return "LAN_X_VERSION" }
func (TrackPowerOff) Name() string       { return "LAN_X_BC_TRACK_POWER_OFF" }
func (TrackPowerOn) Name() string        { return "LAN_X_BC_TRACK_POWER_ON" }
func (ProgrammingMode) Name() string     { return "LAN_X_BC_PROGRAMMING_MODE" }
func (ShortCircuit) Name() string        { return "LAN_X_BC_TRACK_SHORT_CIRCUIT" }
func (UnknownCommand) Name() string      { return "LAN_X_UNKNOWN_COMMAND" }
func (Stopped) Name() string             { return "LAN_X_BC_STOPPED" }
func (StatusChanged) Name() string       { return "LAN_X_STATUS_CHANGED" }
func (FirmwareVersion) Name() string     { return "LAN_X_FIRMWARE_VERSION" }
func (BroadcastFlags) Name() string      { return "LAN_BROADCASTFLAGS" }
func (SystemStateChanged) Name() string  { return "LAN_SYSTEMSTATE_DATACHANGED" }
func (HwInfo) Name() string              { return "LAN_HWINFO" }
func (Code) Name() string                { return "LAN_CODE" }
func (LocoInfo) Name() string            { return "LAN_X_LOCO_INFO" }
func (TurnoutInfo) Name() string         { return "LAN_X_TURNOUT_INFO" }
func (RMBusDataChanged) Name() string    { return "LAN_RMBUS_DATACHANGED" }
func (UnrecognizedMessage) Name() string { return "UNRECOGNIZED" }
func (InvalidMessage) Name() string      { return "INVALID" }

func (SerialNumber) isEvent()        {}
func (VersionInfo) isEvent()         {}
func (TrackPowerOff) isEvent()       {}
func (TrackPowerOn) isEvent()        {}
func (ProgrammingMode) isEvent()     {}
func (ShortCircuit) isEvent()        {}
func (UnknownCommand) isEvent()      {}
func (Stopped) isEvent()             {}
func (StatusChanged) isEvent()       {}
func (FirmwareVersion) isEvent()     {}
func (BroadcastFlags) isEvent()      {}
func (SystemStateChanged) isEvent()  {}
func (HwInfo) isEvent()              {}
func (Code) isEvent()                {}
func (LocoInfo) isEvent()            {}
func (TurnoutInfo) isEvent()         {}
func (RMBusDataChanged) isEvent()    {}
func (UnrecognizedMessage) isEvent() {}
func (InvalidMessage) isEvent()      {}
