// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package z21 provides a Go implementation of the Z21 LAN protocol codec.
//
// The Z21 LAN protocol is a length-prefixed binary protocol carried over UDP
// that Roco/Fleischmann command stations use to expose track power, loco
// driving, turnout switching and R-Bus feedback. This package encodes typed
// commands to datagrams and dispatches received datagrams to typed events.
//
// Every function in this package is pure: nothing is cached between calls and
// all functions are safe for concurrent use.
//
// See the "Z21 LAN Protocol Specification", chapters 2, 4, 5 and 7.
package z21

// Envelope layout
const (
	EnvelopeHeaderSize = 4 // 2 bytes length + 2 bytes header
	MaxRecordSize      = 0xFFFF
	DefaultPort        = 21105
)

// Headers - System, status, versions (chapter 2)
const (
	HeaderGetSerialNumber    uint16 = 0x0010
	HeaderGetCode            uint16 = 0x0018
	HeaderGetHwInfo          uint16 = 0x001A
	HeaderLogOff             uint16 = 0x0030
	HeaderXBus               uint16 = 0x0040
	HeaderSetBroadcastFlags  uint16 = 0x0050
	HeaderGetBroadcastFlags  uint16 = 0x0051
	HeaderRMBusDataChanged   uint16 = 0x0080
	HeaderRMBusGetData       uint16 = 0x0081
	HeaderSystemStateChanged uint16 = 0x0084
	HeaderSystemStateGetData uint16 = 0x0085
)

// X-Bus headers (first byte of a LAN_X payload)
const (
	XHeaderTurnoutInfo     = 0x43 // LAN_X_GET_TURNOUT_INFO and LAN_X_TURNOUT_INFO
	XHeaderSetTurnout      = 0x53
	XHeaderBroadcast       = 0x61 // LAN_X_BC_* and LAN_X_UNKNOWN_COMMAND
	XHeaderStatusChanged   = 0x62
	XHeaderVersion         = 0x63
	XHeaderSetStop         = 0x80
	XHeaderStopped         = 0x81
	XHeaderGetLocoInfo     = 0xE3
	XHeaderSetLoco         = 0xE4 // LAN_X_SET_LOCO_DRIVE and LAN_X_SET_LOCO_FUNCTION
	XHeaderLocoInfo        = 0xEF
	XHeaderGetFirmware     = 0xF1
	XHeaderFirmwareVersion = 0xF3
	XHeaderRequest         = 0x21 // GET_VERSION, GET_STATUS, SET_TRACK_POWER_*
)

// X-Bus sub-identifiers (DB0)
const (
	DB0GetVersion       = 0x21
	DB0GetStatus        = 0x24
	DB0TrackPowerOff    = 0x80
	DB0TrackPowerOn     = 0x81
	DB0StatusChanged    = 0x22
	DB0Firmware         = 0x0A
	DB0GetLocoInfo      = 0xF0
	DB0LocoFunction     = 0xF8
	DB0LocoDrive        = 0x10 // low nibble carries the speed step code
	DB0BcTrackPowerOff  = 0x00
	DB0BcTrackPowerOn   = 0x01
	DB0BcProgramming    = 0x02
	DB0BcShortCircuit   = 0x08
	DB0BcUnknownCommand = 0x82
	DB0Stopped          = 0x00
)

// Address limits
const (
	MinLocoAddress      = 1
	MaxLocoAddress      = 9999
	LongAddressMin      = 128
	longAddressMarker   = 0xC0
	MinTurnoutAddress   = 1
	MaxTurnoutAddress   = 2048
	MaxFunctionIndex    = 31
	RMBusGroupCount     = 2
	RMBusModulesInGroup = 10
)

// Broadcast flags for LAN_SET_BROADCASTFLAGS
const (
	BroadcastDriving     uint32 = 0x00000001 // driving and switching
	BroadcastRMBus       uint32 = 0x00000002
	BroadcastSystemState uint32 = 0x00000100
	BroadcastAllLocos    uint32 = 0x00010000

	// DefaultBroadcastFlags subscribes to everything needed for automated driving.
	DefaultBroadcastFlags = BroadcastDriving | BroadcastSystemState | BroadcastAllLocos
)

// Central state bits (LAN_X_STATUS_CHANGED and LAN_SYSTEMSTATE_DATACHANGED)
const (
	CentralEmergencyStop   = 0x01
	CentralTrackVoltageOff = 0x02
	CentralShortCircuit    = 0x04
	CentralProgrammingMode = 0x20
)

// Extended central state bits (LAN_SYSTEMSTATE_DATACHANGED)
const (
	CentralExHighTemperature      = 0x01
	CentralExPowerLost            = 0x02
	CentralExShortCircuitExternal = 0x04
	CentralExShortCircuitInternal = 0x08
)

// Command station IDs from LAN_X_GET_VERSION
const (
	CommandStationZ21      = 0x12
	CommandStationZ21Small = 0x13
)

// HardwareType identifies the command station model (LAN_GET_HWINFO)
type HardwareType uint32

// Hardware type values
const (
	HwZ21Old        HardwareType = 0x00000200
	HwZ21New        HardwareType = 0x00000201
	HwSmartRail     HardwareType = 0x00000202
	HwZ21Small      HardwareType = 0x00000203
	HwZ21Start      HardwareType = 0x00000204
	HwSingleBooster HardwareType = 0x00000205
	HwDualBooster   HardwareType = 0x00000206
	HwZ21XL         HardwareType = 0x00000211
	HwXLBooster     HardwareType = 0x00000212
	HwSwitchDecoder HardwareType = 0x00000301
	HwSignalDecoder HardwareType = 0x00000302
)

// FeatureCode is the software feature scope reported by LAN_GET_CODE
type FeatureCode uint8

// Feature code values
const (
	CodeNoLock        FeatureCode = 0x00
	CodeStartLocked   FeatureCode = 0x01
	CodeStartUnlocked FeatureCode = 0x02
)

// SpeedSteps selects the DCC speed step mode
type SpeedSteps uint8

// Speed step modes
const (
	SpeedSteps14  SpeedSteps = 14
	SpeedSteps28  SpeedSteps = 28
	SpeedSteps128 SpeedSteps = 128
)

// Direction of travel
type Direction uint8

// Direction values
const (
	Reverse Direction = 0
	Forward Direction = 1
)

// FunctionAction is the switch type of LAN_X_SET_LOCO_FUNCTION
type FunctionAction uint8

// Function action values (TT bits)
const (
	FunctionOff    FunctionAction = 0x00
	FunctionOn     FunctionAction = 0x01
	FunctionToggle FunctionAction = 0x02
)

// TurnoutOutput selects one of the two outputs of an accessory decoder
type TurnoutOutput uint8

// Turnout outputs (P bit)
const (
	TurnoutOutput1 TurnoutOutput = 0
	TurnoutOutput2 TurnoutOutput = 1
)

// TurnoutState is the ZZ field of LAN_X_TURNOUT_INFO
type TurnoutState uint8

// Turnout states
const (
	TurnoutNotSwitched TurnoutState = 0x00
	TurnoutOutput1On   TurnoutState = 0x01 // last switched with P=0
	TurnoutOutput2On   TurnoutState = 0x02 // last switched with P=1
	TurnoutInvalid     TurnoutState = 0x03
)

// Turnout set byte bits (10Q0A00P)
const (
	turnoutSetBase     = 0x80
	turnoutSetQueue    = 0x20
	turnoutSetActivate = 0x08
	turnoutSetOutput   = 0x01
)

// Loco info bits
const (
	locoBusy           = 0x08
	locoStepMask       = 0x07
	locoForward        = 0x80
	locoDoubleTraction = 0x40
	locoSmartSearch    = 0x20
	locoLight          = 0x10
)
