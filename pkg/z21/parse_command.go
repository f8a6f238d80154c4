// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"encoding/binary"
	"fmt"
)

// ParseCommand decodes one outbound record back into its Command. It is the
// inverse of Encode and is used to label client traffic read from captures.
//
// Returns ErrUnknownCommand for a well-formed record that is not a command,
// envelope and X-Bus errors as DecodeEnvelope and DecodeXBus do, and an
// *InvalidCommandError when the fields are outside the command's range.
func ParseCommand(raw []byte) (Command, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	p := env.Payload

	empty := func(c Command) (Command, error) {
		if len(p) != 0 {
			return nil, fmt.Errorf("%w: %s has %d bytes, expected 0", ErrPayloadLength, c.Name(), len(p))
		}
		return c, nil
	}

	switch env.Header {
	case HeaderGetSerialNumber:
		return empty(GetSerialNumber{})
	case HeaderLogOff:
		return empty(LogOff{})
	case HeaderGetBroadcastFlags:
		return empty(GetBroadcastFlags{})
	case HeaderSystemStateGetData:
		return empty(GetSystemState{})
	case HeaderGetHwInfo:
		return empty(GetHwInfo{})
	case HeaderGetCode:
		return empty(GetCode{})

	case HeaderSetBroadcastFlags:
		if err := expectSize("LAN_SET_BROADCASTFLAGS", p, 4); err != nil {
			return nil, err
		}
		return NewSetBroadcastFlags(binary.LittleEndian.Uint32(p)), nil

	case HeaderRMBusGetData:
		if err := expectSize("LAN_RMBUS_GETDATA", p, 1); err != nil {
			return nil, err
		}
		return NewGetRMBusData(p[0])

	case HeaderXBus:
		return parseXBusCommand(p)
	}

	return nil, fmt.Errorf("%w: header 0x%04X", ErrUnknownCommand, env.Header)
}

func parseXBusCommand(payload []byte) (Command, error) {
	frame, err := DecodeXBus(payload)
	if err != nil {
		return nil, err
	}
	d := frame.Data

	switch frame.Header {
	case XHeaderRequest:
		if len(d) == 1 {
			switch d[0] {
			case DB0GetVersion:
				return GetVersion{}, nil
			case DB0GetStatus:
				return GetStatus{}, nil
			case DB0TrackPowerOff:
				return SetTrackPowerOff{}, nil
			case DB0TrackPowerOn:
				return SetTrackPowerOn{}, nil
			}
		}

	case XHeaderSetStop:
		if len(d) == 0 {
			return SetStop{}, nil
		}

	case XHeaderGetFirmware:
		if len(d) == 1 && d[0] == DB0Firmware {
			return GetFirmwareVersion{}, nil
		}

	case XHeaderGetLocoInfo:
		if len(d) == 3 && d[0] == DB0GetLocoInfo {
			return NewGetLocoInfo(decodeLocoAddress(d[1], d[2]))
		}

	case XHeaderSetLoco:
		if len(d) != 4 {
			break
		}
		address := decodeLocoAddress(d[1], d[2])
		if d[0] == DB0LocoFunction {
			index, action := decodeFunction(d[3])
			return NewSetLocoFunction(address, index, action)
		}
		if d[0]&0xF0 == DB0LocoDrive {
			steps, ok := speedStepsFromDriveCode(d[0] & 0x0F)
			if !ok {
				return nil, fmt.Errorf("%w: LAN_X_SET_LOCO_DRIVE speed step code %d", ErrFieldValue, d[0]&0x0F)
			}
			dir, speed, estop := decodeSpeed(steps, d[3])
			if estop {
				return NewLocoEmergencyStop(address, steps, dir)
			}
			return NewSetLocoDrive(address, steps, dir, speed)
		}

	case XHeaderTurnoutInfo:
		if len(d) == 2 {
			return NewGetTurnoutInfo(decodeTurnoutAddress(d[0], d[1]))
		}

	case XHeaderSetTurnout:
		if len(d) == 3 && d[2]&0xC0 == turnoutSetBase {
			output := TurnoutOutput1
			if d[2]&turnoutSetOutput != 0 {
				output = TurnoutOutput2
			}
			return NewSetTurnout(
				decodeTurnoutAddress(d[0], d[1]),
				output,
				d[2]&turnoutSetActivate != 0,
				d[2]&turnoutSetQueue != 0,
			)
		}
	}

	return nil, fmt.Errorf("%w: X-Header 0x%02X with %d data bytes", ErrUnknownCommand, frame.Header, len(d))
}
