// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import "fmt"

// encodeLocoAddress returns Adr_MSB, Adr_LSB. Long addresses (>= 128) carry
// 0xC0 in the two top bits of the MSB.
func encodeLocoAddress(address uint16) (byte, byte) {
	msb := byte(address >> 8)
	if address >= LongAddressMin {
		msb |= longAddressMarker
	}
	return msb, byte(address)
}

func decodeLocoAddress(msb, lsb byte) uint16 {
	return uint16(msb&0x3F)<<8 | uint16(lsb)
}

// Turnout addresses are 1-based for users and 0-based on the wire.
func encodeTurnoutAddress(address uint16) (byte, byte) {
	wire := address - 1
	return byte(wire >> 8), byte(wire)
}

func decodeTurnoutAddress(msb, lsb byte) uint16 {
	return (uint16(msb)<<8 | uint16(lsb)) + 1
}

// MaxSpeed returns the highest speed step for the mode.
func (s SpeedSteps) MaxSpeed() uint8 {
	switch s {
	case SpeedSteps14:
		return 14
	case SpeedSteps28:
		return 28
	default:
		return 126
	}
}

// Valid reports whether s is one of the three supported modes.
func (s SpeedSteps) Valid() bool {
	return s == SpeedSteps14 || s == SpeedSteps28 || s == SpeedSteps128
}

// driveCode is the S nibble of LAN_X_SET_LOCO_DRIVE DB0.
func (s SpeedSteps) driveCode() byte {
	switch s {
	case SpeedSteps14:
		return 0x00
	case SpeedSteps28:
		return 0x02
	default:
		return 0x03
	}
}

// infoCode is the KKK field of LAN_X_LOCO_INFO DB2.
func (s SpeedSteps) infoCode() byte {
	switch s {
	case SpeedSteps14:
		return 0x00
	case SpeedSteps28:
		return 0x02
	default:
		return 0x04
	}
}

func speedStepsFromDriveCode(code byte) (SpeedSteps, bool) {
	switch code {
	case 0x00:
		return SpeedSteps14, true
	case 0x02:
		return SpeedSteps28, true
	case 0x03:
		return SpeedSteps128, true
	}
	return 0, false
}

func speedStepsFromInfoCode(code byte) (SpeedSteps, bool) {
	switch code {
	case 0x00:
		return SpeedSteps14, true
	case 0x02:
		return SpeedSteps28, true
	case 0x04:
		return SpeedSteps128, true
	}
	return 0, false
}

// encodeSpeed builds the RVVVVVVV byte shared by LAN_X_SET_LOCO_DRIVE and
// LAN_X_LOCO_INFO.
func encodeSpeed(steps SpeedSteps, dir Direction, speed uint8, emergency bool) byte {
	var v byte
	switch {
	case emergency:
		v = 0x01
	case speed == 0:
		v = 0x00
	case steps == SpeedSteps28:
		// 28 steps interleave the intermediate step in bit 4
		base := speed + 3
		v = base>>1 | (base&0x01)<<4
	default:
		v = speed + 1
	}
	if dir == Forward {
		v |= locoForward
	}
	return v
}

// decodeSpeed is the inverse of encodeSpeed.
func decodeSpeed(steps SpeedSteps, b byte) (dir Direction, speed uint8, emergency bool) {
	if b&locoForward != 0 {
		dir = Forward
	}

	var v byte
	switch steps {
	case SpeedSteps14:
		v = b & 0x0F
	case SpeedSteps28:
		raw := b & 0x1F
		v = (raw&0x0F)<<1 | (raw>>4)&0x01
		// base 0,1 = stop; 2,3 = emergency stop; n+3 = step n
		switch {
		case v <= 1:
			return dir, 0, false
		case v <= 3:
			return dir, 0, true
		}
		return dir, v - 3, false
	default:
		v = b & 0x7F
	}

	switch v {
	case 0:
		return dir, 0, false
	case 1:
		return dir, 0, true
	}
	return dir, v - 1, false
}

// encodeFunction builds the TTNNNNNN byte of LAN_X_SET_LOCO_FUNCTION.
func encodeFunction(index uint8, action FunctionAction) byte {
	return byte(action)<<6 | index&0x3F
}

func decodeFunction(b byte) (uint8, FunctionAction) {
	return b & 0x3F, FunctionAction(b >> 6)
}

// decodeBCD converts one packed BCD byte (0x23 -> 23).
func decodeBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

// encodeBCD converts 0..99 to a packed BCD byte.
func encodeBCD(v int) byte {
	return byte((v/10)%10)<<4 | byte(v%10)
}

// String implements fmt.Stringer
func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "reverse"
}

// String implements fmt.Stringer
func (a FunctionAction) String() string {
	switch a {
	case FunctionOff:
		return "off"
	case FunctionOn:
		return "on"
	case FunctionToggle:
		return "toggle"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// String implements fmt.Stringer
func (s TurnoutState) String() string {
	switch s {
	case TurnoutNotSwitched:
		return "not switched"
	case TurnoutOutput1On:
		return "output 1"
	case TurnoutOutput2On:
		return "output 2"
	}
	return "invalid"
}

// String implements fmt.Stringer
func (h HardwareType) String() string {
	switch h {
	case HwZ21Old:
		return "Z21 (black, 2012)"
	case HwZ21New:
		return "Z21 (black, 2013+)"
	case HwSmartRail:
		return "SmartRail"
	case HwZ21Small:
		return "z21 (white)"
	case HwZ21Start:
		return "z21start"
	case HwSingleBooster:
		return "Z21 single booster"
	case HwDualBooster:
		return "Z21 dual booster"
	case HwZ21XL:
		return "Z21 XL"
	case HwXLBooster:
		return "Z21 XL booster"
	case HwSwitchDecoder:
		return "Z21 switch decoder"
	case HwSignalDecoder:
		return "Z21 signal decoder"
	}
	return fmt.Sprintf("unknown (0x%08X)", uint32(h))
}

// String implements fmt.Stringer
func (c FeatureCode) String() string {
	switch c {
	case CodeNoLock:
		return "all features"
	case CodeStartLocked:
		return "z21start locked"
	case CodeStartUnlocked:
		return "z21start unlocked"
	}
	return fmt.Sprintf("unknown (0x%02X)", uint8(c))
}
