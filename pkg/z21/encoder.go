// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a command to one complete datagram.
//
// Commands built with their constructor always encode. A zero-value
// parameterized command (e.g. SetLocoDrive{}) is rejected with an
// *InvalidCommandError instead of emitting an out-of-range frame.
func Encode(c Command) ([]byte, error) {
	switch c := c.(type) {
	case GetSerialNumber:
		return EncodeEnvelope(HeaderGetSerialNumber, nil), nil
	case LogOff:
		return EncodeEnvelope(HeaderLogOff, nil), nil
	case GetBroadcastFlags:
		return EncodeEnvelope(HeaderGetBroadcastFlags, nil), nil
	case GetSystemState:
		return EncodeEnvelope(HeaderSystemStateGetData, nil), nil
	case GetHwInfo:
		return EncodeEnvelope(HeaderGetHwInfo, nil), nil
	case GetCode:
		return EncodeEnvelope(HeaderGetCode, nil), nil

	case GetVersion:
		return encodeXBusRecord(XHeaderRequest, DB0GetVersion), nil
	case GetStatus:
		return encodeXBusRecord(XHeaderRequest, DB0GetStatus), nil
	case SetTrackPowerOff:
		return encodeXBusRecord(XHeaderRequest, DB0TrackPowerOff), nil
	case SetTrackPowerOn:
		return encodeXBusRecord(XHeaderRequest, DB0TrackPowerOn), nil
	case SetStop:
		return encodeXBusRecord(XHeaderSetStop), nil
	case GetFirmwareVersion:
		return encodeXBusRecord(XHeaderGetFirmware, DB0Firmware), nil

	case SetBroadcastFlags:
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, c.flags)
		return EncodeEnvelope(HeaderSetBroadcastFlags, payload), nil

	case GetLocoInfo:
		if err := validateLocoAddress(c.Name(), c.address); err != nil {
			return nil, err
		}
		msb, lsb := encodeLocoAddress(c.address)
		return encodeXBusRecord(XHeaderGetLocoInfo, DB0GetLocoInfo, msb, lsb), nil

	case SetLocoDrive:
		if err := c.validate(); err != nil {
			return nil, err
		}
		msb, lsb := encodeLocoAddress(c.address)
		speed := encodeSpeed(c.steps, c.direction, c.speed, c.emergency)
		return encodeXBusRecord(XHeaderSetLoco, DB0LocoDrive|c.steps.driveCode(), msb, lsb, speed), nil

	case SetLocoFunction:
		if err := c.validate(); err != nil {
			return nil, err
		}
		msb, lsb := encodeLocoAddress(c.address)
		return encodeXBusRecord(XHeaderSetLoco, DB0LocoFunction, msb, lsb, encodeFunction(c.index, c.action)), nil

	case GetTurnoutInfo:
		if err := validateTurnoutAddress(c.Name(), c.address); err != nil {
			return nil, err
		}
		msb, lsb := encodeTurnoutAddress(c.address)
		return encodeXBusRecord(XHeaderTurnoutInfo, msb, lsb), nil

	case SetTurnout:
		if err := validateTurnoutAddress(c.Name(), c.address); err != nil {
			return nil, err
		}
		msb, lsb := encodeTurnoutAddress(c.address)
		return encodeXBusRecord(XHeaderSetTurnout, msb, lsb, turnoutSetByte(c)), nil

	case GetRMBusData:
		if c.group >= RMBusGroupCount {
			return nil, invalidCommand(c.Name(), "group", int(c.group), "must be 0 or 1")
		}
		return EncodeEnvelope(HeaderRMBusGetData, []byte{c.group}), nil

	case nil:
		return nil, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}

	return nil, fmt.Errorf("%w: unsupported command type %T", ErrInvalidCommand, c)
}

// MustEncode is Encode for commands known to be valid.
// Panics on error (use Encode for error handling).
func MustEncode(c Command) []byte {
	data, err := Encode(c)
	if err != nil {
		panic(fmt.Sprintf("z21: encode error: %v", err))
	}
	return data
}

// turnoutSetByte builds 10Q0A00P.
func turnoutSetByte(c SetTurnout) byte {
	b := byte(turnoutSetBase)
	if c.queue {
		b |= turnoutSetQueue
	}
	if c.activate {
		b |= turnoutSetActivate
	}
	if c.output == TurnoutOutput2 {
		b |= turnoutSetOutput
	}
	return b
}
