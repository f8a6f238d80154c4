// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"encoding/binary"
	"fmt"
)

// EncodeEvent serializes a catalog event the way a command station sends it.
// It is the inverse of Dispatch and is used by the loopback transport and by
// tests that play the command station side.
//
// UnrecognizedMessage and InvalidMessage are returned as their raw bytes.
func EncodeEvent(e Event) ([]byte, error) {
	switch e := e.(type) {
	case SerialNumber:
		p := make([]byte, serialNumberSize)
		binary.LittleEndian.PutUint32(p, e.Value)
		return EncodeEnvelope(HeaderGetSerialNumber, p), nil

	case Code:
		return EncodeEnvelope(HeaderGetCode, []byte{byte(e.Code)}), nil

	case HwInfo:
		p := make([]byte, hwInfoSize)
		binary.LittleEndian.PutUint32(p[0:4], uint32(e.HardwareType))
		p[4] = encodeBCD(e.FirmwareMinor)
		p[5] = encodeBCD(e.FirmwareMajor)
		return EncodeEnvelope(HeaderGetHwInfo, p), nil

	case BroadcastFlags:
		p := make([]byte, broadcastSize)
		binary.LittleEndian.PutUint32(p, e.Flags)
		return EncodeEnvelope(HeaderGetBroadcastFlags, p), nil

	case RMBusDataChanged:
		if e.Group >= RMBusGroupCount {
			return nil, fmt.Errorf("%w: R-Bus group %d", ErrFieldValue, e.Group)
		}
		p := make([]byte, 0, rmBusSize)
		p = append(p, e.Group)
		p = append(p, e.Feedback[:]...)
		return EncodeEnvelope(HeaderRMBusDataChanged, p), nil

	case SystemStateChanged:
		p := make([]byte, systemStateSize)
		binary.LittleEndian.PutUint16(p[0:], uint16(e.MainCurrent))
		binary.LittleEndian.PutUint16(p[2:], uint16(e.ProgCurrent))
		binary.LittleEndian.PutUint16(p[4:], uint16(e.FilteredMainCurrent))
		binary.LittleEndian.PutUint16(p[6:], uint16(e.Temperature))
		binary.LittleEndian.PutUint16(p[8:], e.SupplyVoltage)
		binary.LittleEndian.PutUint16(p[10:], e.VCCVoltage)
		p[12] = e.CentralState
		p[13] = e.CentralStateEx
		p[15] = e.Capabilities
		return EncodeEnvelope(HeaderSystemStateChanged, p), nil

	case TrackPowerOff:
		return encodeXBusRecord(XHeaderBroadcast, DB0BcTrackPowerOff), nil
	case TrackPowerOn:
		return encodeXBusRecord(XHeaderBroadcast, DB0BcTrackPowerOn), nil
	case ProgrammingMode:
		return encodeXBusRecord(XHeaderBroadcast, DB0BcProgramming), nil
	case ShortCircuit:
		return encodeXBusRecord(XHeaderBroadcast, DB0BcShortCircuit), nil
	case UnknownCommand:
		return encodeXBusRecord(XHeaderBroadcast, DB0BcUnknownCommand), nil
	case Stopped:
		return encodeXBusRecord(XHeaderStopped, DB0Stopped), nil

	case StatusChanged:
		return encodeXBusRecord(XHeaderStatusChanged, DB0StatusChanged, e.CentralState), nil

	case VersionInfo:
		return encodeXBusRecord(XHeaderVersion, DB0GetVersion, e.XBusVersion, e.CommandStationID), nil

	case FirmwareVersion:
		return encodeXBusRecord(XHeaderFirmwareVersion, DB0Firmware, encodeBCD(e.Major), encodeBCD(e.Minor)), nil

	case TurnoutInfo:
		if e.Address < MinTurnoutAddress || e.Address > MaxTurnoutAddress {
			return nil, fmt.Errorf("%w: turnout address %d", ErrFieldValue, e.Address)
		}
		if e.State > TurnoutInvalid {
			return nil, fmt.Errorf("%w: turnout state %d", ErrFieldValue, e.State)
		}
		msb, lsb := encodeTurnoutAddress(e.Address)
		return encodeXBusRecord(XHeaderTurnoutInfo, msb, lsb, byte(e.State)), nil

	case LocoInfo:
		return encodeLocoInfo(e)

	case UnrecognizedMessage:
		return cloneBytes(e.Raw), nil
	case InvalidMessage:
		return cloneBytes(e.Raw), nil

	case nil:
		return nil, fmt.Errorf("%w: nil event", ErrFieldValue)
	}

	return nil, fmt.Errorf("%w: unsupported event type %T", ErrFieldValue, e)
}

func encodeLocoInfo(e LocoInfo) ([]byte, error) {
	if e.Address < MinLocoAddress || e.Address > MaxLocoAddress {
		return nil, fmt.Errorf("%w: loco address %d", ErrFieldValue, e.Address)
	}
	if !e.SpeedSteps.Valid() {
		return nil, fmt.Errorf("%w: speed steps %d", ErrFieldValue, e.SpeedSteps)
	}
	if e.Speed > e.SpeedSteps.MaxSpeed() {
		return nil, fmt.Errorf("%w: speed %d", ErrFieldValue, e.Speed)
	}

	msb, lsb := encodeLocoAddress(e.Address)

	db2 := e.SpeedSteps.infoCode()
	if e.Busy {
		db2 |= locoBusy
	}

	f := e.Functions
	db4 := byte(f>>1)&0x0F | byte(f&0x01)<<4
	if e.DoubleTraction {
		db4 |= locoDoubleTraction
	}
	if e.SmartSearch {
		db4 |= locoSmartSearch
	}

	return encodeXBusRecord(XHeaderLocoInfo,
		msb, lsb,
		db2,
		encodeSpeed(e.SpeedSteps, e.Direction, e.Speed, e.EmergencyStop),
		db4,
		byte(f>>5),
		byte(f>>13),
		byte(f>>21),
		byte(f>>29)&0x07,
	), nil
}
