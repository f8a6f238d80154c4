// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// errNoVariant signals that the marker bytes matched no catalog entry.
// Dispatch turns it into UnrecognizedMessage; it never leaves the package.
var errNoVariant = errors.New("no matching variant")

// Inbound payload sizes (after the 4 byte envelope header)
const (
	serialNumberSize = 4
	codeSize         = 1
	hwInfoSize       = 8
	broadcastSize    = 4
	rmBusSize        = 1 + RMBusModulesInGroup
	systemStateSize  = 16
)

// LAN_X_LOCO_INFO carries at least DB0..DB7. Newer firmware appends up to
// seven more bytes; only DB8 (F29-F31) is decoded.
const (
	locoInfoMinData = 8
	locoInfoMaxData = 15
)

func expectSize(name string, payload []byte, size int) error {
	if len(payload) != size {
		return fmt.Errorf("%w: %s has %d bytes, expected %d", ErrPayloadLength, name, len(payload), size)
	}
	return nil
}

// decodeHeaderEvent decodes the non X-Bus records of the inbound catalog.
func decodeHeaderEvent(header uint16, payload []byte) (Event, error) {
	switch header {
	case HeaderGetSerialNumber:
		if err := expectSize("LAN_GET_SERIAL_NUMBER", payload, serialNumberSize); err != nil {
			return nil, err
		}
		return SerialNumber{Value: binary.LittleEndian.Uint32(payload)}, nil

	case HeaderGetCode:
		if err := expectSize("LAN_GET_CODE", payload, codeSize); err != nil {
			return nil, err
		}
		return Code{Code: FeatureCode(payload[0])}, nil

	case HeaderGetHwInfo:
		if err := expectSize("LAN_GET_HWINFO", payload, hwInfoSize); err != nil {
			return nil, err
		}
		return HwInfo{
			HardwareType:  HardwareType(binary.LittleEndian.Uint32(payload[0:4])),
			FirmwareMajor: decodeBCD(payload[5]),
			FirmwareMinor: decodeBCD(payload[4]),
		}, nil

	case HeaderGetBroadcastFlags:
		if err := expectSize("LAN_GET_BROADCASTFLAGS", payload, broadcastSize); err != nil {
			return nil, err
		}
		return BroadcastFlags{Flags: binary.LittleEndian.Uint32(payload)}, nil

	case HeaderRMBusDataChanged:
		if err := expectSize("LAN_RMBUS_DATACHANGED", payload, rmBusSize); err != nil {
			return nil, err
		}
		ev := RMBusDataChanged{Group: payload[0]}
		copy(ev.Feedback[:], payload[1:])
		return ev, nil

	case HeaderSystemStateChanged:
		if err := expectSize("LAN_SYSTEMSTATE_DATACHANGED", payload, systemStateSize); err != nil {
			return nil, err
		}
		return decodeSystemState(payload), nil

	case HeaderXBus:
		return decodeXBusEvent(payload)
	}

	return nil, errNoVariant
}

func decodeSystemState(p []byte) SystemStateChanged {
	i16 := func(off int) int16 { return int16(binary.LittleEndian.Uint16(p[off:])) }
	u16 := func(off int) uint16 { return binary.LittleEndian.Uint16(p[off:]) }

	return SystemStateChanged{
		MainCurrent:         i16(0),
		ProgCurrent:         i16(2),
		FilteredMainCurrent: i16(4),
		Temperature:         i16(6),
		SupplyVoltage:       u16(8),
		VCCVoltage:          u16(10),
		CentralState:        p[12],
		CentralStateEx:      p[13],
		// p[14] reserved
		Capabilities: p[15],
	}
}

// decodeXBusEvent verifies the X-Bus checksum, then matches X-Header and DB0.
func decodeXBusEvent(payload []byte) (Event, error) {
	frame, err := DecodeXBus(payload)
	if err != nil {
		return nil, err
	}
	d := frame.Data

	switch frame.Header {
	case XHeaderBroadcast:
		if len(d) == 0 {
			return nil, errNoVariant
		}
		var ev Event
		switch d[0] {
		case DB0BcTrackPowerOff:
			ev = TrackPowerOff{}
		case DB0BcTrackPowerOn:
			ev = TrackPowerOn{}
		case DB0BcProgramming:
			ev = ProgrammingMode{}
		case DB0BcShortCircuit:
			ev = ShortCircuit{}
		case DB0BcUnknownCommand:
			ev = UnknownCommand{}
		default:
			return nil, errNoVariant
		}
		if err := expectSize(ev.Name(), d, 1); err != nil {
			return nil, err
		}
		return ev, nil

	case XHeaderStatusChanged:
		if len(d) == 0 || d[0] != DB0StatusChanged {
			return nil, errNoVariant
		}
		if err := expectSize("LAN_X_STATUS_CHANGED", d, 2); err != nil {
			return nil, err
		}
		return StatusChanged{CentralState: d[1]}, nil

	case XHeaderVersion:
		if len(d) == 0 || d[0] != DB0GetVersion {
			return nil, errNoVariant
		}
		if err := expectSize("LAN_X_GET_VERSION", d, 3); err != nil {
			return nil, err
		}
		return VersionInfo{XBusVersion: d[1], CommandStationID: d[2]}, nil

	case XHeaderStopped:
		if len(d) == 0 || d[0] != DB0Stopped {
			return nil, errNoVariant
		}
		if err := expectSize("LAN_X_BC_STOPPED", d, 1); err != nil {
			return nil, err
		}
		return Stopped{}, nil

	case XHeaderFirmwareVersion:
		if len(d) == 0 || d[0] != DB0Firmware {
			return nil, errNoVariant
		}
		if err := expectSize("LAN_X_GET_FIRMWARE_VERSION", d, 3); err != nil {
			return nil, err
		}
		return FirmwareVersion{Major: decodeBCD(d[1]), Minor: decodeBCD(d[2])}, nil

	case XHeaderTurnoutInfo:
		if err := expectSize("LAN_X_TURNOUT_INFO", d, 3); err != nil {
			return nil, err
		}
		// DB2 is 000000ZZ
		if d[2]&^0x03 != 0 {
			return nil, fmt.Errorf("%w: turnout state byte 0x%02X", ErrFieldValue, d[2])
		}
		return TurnoutInfo{
			Address: decodeTurnoutAddress(d[0], d[1]),
			State:   TurnoutState(d[2]),
		}, nil

	case XHeaderLocoInfo:
		return decodeLocoInfo(d)
	}

	return nil, errNoVariant
}

// decodeLocoInfo decodes DB0..DBn of LAN_X_LOCO_INFO:
// Adr_MSB Adr_LSB 0000BKKK RVVVVVVV 0DSLFGHJ F5-F12 F13-F20 F21-F28 [F29-F31 ...]
func decodeLocoInfo(d []byte) (Event, error) {
	if len(d) < locoInfoMinData || len(d) > locoInfoMaxData {
		return nil, fmt.Errorf("%w: LAN_X_LOCO_INFO has %d data bytes, expected %d-%d",
			ErrPayloadLength, len(d), locoInfoMinData, locoInfoMaxData)
	}

	steps, ok := speedStepsFromInfoCode(d[2] & locoStepMask)
	if !ok {
		return nil, fmt.Errorf("%w: LAN_X_LOCO_INFO speed step code %d", ErrFieldValue, d[2]&locoStepMask)
	}
	dir, speed, estop := decodeSpeed(steps, d[3])

	db4 := d[4]
	functions := uint32(db4>>4)&0x01 |
		uint32(db4&0x0F)<<1 |
		uint32(d[5])<<5 |
		uint32(d[6])<<13 |
		uint32(d[7])<<21
	if len(d) > locoInfoMinData {
		functions |= uint32(d[8]&0x07) << 29
	}

	return LocoInfo{
		Address:        decodeLocoAddress(d[0], d[1]),
		Busy:           d[2]&locoBusy != 0,
		SpeedSteps:     steps,
		Direction:      dir,
		Speed:          speed,
		EmergencyStop:  estop,
		DoubleTraction: db4&locoDoubleTraction != 0,
		SmartSearch:    db4&locoSmartSearch != 0,
		Functions:      functions,
	}, nil
}
